package telemetry

import (
	"testing"

	"github.com/pthm-cable/axiogen/components"
)

func TestLifetimeTrackerEndOnce(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(5, 0, 100)
	lt.UpdateEnergy(5, 150)
	lt.UpdateEnergy(5, 120)

	if !lt.End(5, 40, components.CauseEnergy, 12, 3, 1, 2) {
		t.Fatal("first End should close the record")
	}
	if lt.End(5, 90, components.CauseTimeout, 99, 0, 0, 0) {
		t.Error("second End must be ignored")
	}

	s := lt.Get(5)
	if s.EndTick != 40 || s.Cause != components.CauseEnergy || s.Fitness != 12 {
		t.Errorf("record overwritten: %+v", s)
	}
	if s.PeakEnergy != 150 {
		t.Errorf("peak energy = %v, want 150", s.PeakEnergy)
	}
	if s.Collisions != 3 || s.Refuels != 1 || s.Nudges != 2 {
		t.Errorf("unexpected counters: %+v", s)
	}
}

func TestLifetimeTrackerUnknownAndEmptyCause(t *testing.T) {
	lt := NewLifetimeTracker()
	if lt.End(1, 10, components.CauseEnergy, 0, 0, 0, 0) {
		t.Error("End on an unregistered genome should fail")
	}
	lt.Register(1, 0, 10)
	if lt.End(1, 10, components.CauseNone, 0, 0, 0, 0) {
		t.Error("End without a cause should fail")
	}
	if lt.Get(1).Ended() {
		t.Error("record should still be running")
	}
}

func TestLifetimeTrackerRecordsAndCounts(t *testing.T) {
	lt := NewLifetimeTracker()
	for _, id := range []int{9, 2, 5} {
		lt.Register(id, 0, 10)
	}
	lt.End(9, 5, components.CauseEnergy, 0, 0, 0, 0)
	lt.End(2, 6, components.CauseEnergy, 0, 0, 0, 0)

	recs := lt.Records()
	if len(recs) != 3 || recs[0].GenomeID != 2 || recs[1].GenomeID != 5 || recs[2].GenomeID != 9 {
		t.Errorf("records not ordered by genome: %+v", recs)
	}

	counts := lt.CauseCounts()
	if counts[components.CauseEnergy] != 2 || len(counts) != 1 {
		t.Errorf("unexpected cause counts %v", counts)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector()
	c.RecordCollision()
	c.RecordCollision()
	c.RecordMilestone()
	c.RecordGoal()
	c.RecordFood(3)
	c.RecordNudge()
	c.RecordDeath(components.CauseEnergy)
	c.RecordDeath(components.CauseStagnation)
	c.RecordDeath(components.CauseBoundary)
	c.RecordDeath(components.CauseGoal)

	var s GenerationStats
	c.Flush(&s)
	if s.Collisions != 2 || s.Milestones != 1 || s.GoalsReached != 1 || s.FoodEaten != 3 || s.Nudges != 1 {
		t.Errorf("unexpected event counts %+v", s)
	}
	if s.DeathsEnergy != 1 || s.DeathsStagnation != 1 || s.DeathsBoundary != 1 {
		t.Errorf("unexpected death counts %+v", s)
	}

	var next GenerationStats
	c.Flush(&next)
	if next.Collisions != 0 || next.DeathsEnergy != 0 {
		t.Error("flush should reset counters")
	}
}
