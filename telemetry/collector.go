package telemetry

import "github.com/pthm-cable/axiogen/components"

// Collector accumulates episode events and folds them into GenerationStats.
// It is only touched from the evaluator's single-threaded apply phase.
type Collector struct {
	collisions   int
	milestones   int
	goalsReached int
	foodEaten    int
	nudges       int

	deathsEnergy     int
	deathsStagnation int
	deathsBoundary   int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordCollision records an obstacle contact.
func (c *Collector) RecordCollision() {
	c.collisions++
}

// RecordMilestone records an agent picking up the key.
func (c *Collector) RecordMilestone() {
	c.milestones++
}

// RecordGoal records an agent reaching the terminal goal.
func (c *Collector) RecordGoal() {
	c.goalsReached++
}

// RecordFood records food items consumed.
func (c *Collector) RecordFood(n int) {
	c.foodEaten += n
}

// RecordNudge records one plasticity weight update.
func (c *Collector) RecordNudge() {
	c.nudges++
}

// RecordDeath records an agent stopping for the given cause.
// Goal and timeout stops are not deaths and are ignored.
func (c *Collector) RecordDeath(cause string) {
	switch cause {
	case components.CauseEnergy:
		c.deathsEnergy++
	case components.CauseStagnation:
		c.deathsStagnation++
	case components.CauseBoundary:
		c.deathsBoundary++
	}
}

// Flush copies the counters into stats and resets them for the next episode.
func (c *Collector) Flush(stats *GenerationStats) {
	stats.Collisions = c.collisions
	stats.Milestones = c.milestones
	stats.GoalsReached = c.goalsReached
	stats.FoodEaten = c.foodEaten
	stats.Nudges = c.nudges
	stats.DeathsEnergy = c.deathsEnergy
	stats.DeathsStagnation = c.deathsStagnation
	stats.DeathsBoundary = c.deathsBoundary

	*c = Collector{}
}
