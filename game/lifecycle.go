package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/axiogen/components"
)

// deathCause names why an agent stopped during the tick that produced in.
func deathCause(in *intent) string {
	switch {
	case in.Shape.Success:
		return components.CauseGoal
	case in.Step.Starved:
		return components.CauseEnergy
	case in.Step.OutOfBounds:
		return components.CauseBoundary
	case in.Shape.Stagnated:
		return components.CauseStagnation
	default:
		return components.CauseEnergy
	}
}

// cleanupDead removes agents that stopped this tick from the world, keeping
// their final progress. Returns the number of agents still alive.
func (e *Evaluator) cleanupDead() int {
	// First pass: collect dead entities (must complete before modifying)
	var toRemove []ecs.Entity
	alive := 0

	query := e.agentFilter.Query()
	for query.Next() {
		_, _, vitals, _, _ := query.Get()
		if vitals.Alive {
			alive++
			continue
		}
		toRemove = append(toRemove, query.Entity())
	}

	// Second pass: remove entities (query iteration complete)
	for _, entity := range toRemove {
		e.finishAgent(entity, "")
	}
	return alive
}

// finishRemaining stops every agent still in the world with cause.
func (e *Evaluator) finishRemaining(cause string) {
	var remaining []ecs.Entity
	query := e.agentFilter.Query()
	for query.Next() {
		remaining = append(remaining, query.Entity())
	}
	for _, entity := range remaining {
		e.finishAgent(entity, cause)
	}
}

// finishAgent records an agent's outcome exactly once and removes its
// entity. An empty cause keeps the one set when the agent died.
func (e *Evaluator) finishAgent(entity ecs.Entity, cause string) {
	tag := e.tagMap.Get(entity)
	progress := e.progressMap.Get(entity)
	if tag == nil || progress == nil {
		return
	}
	a := &e.agents[tag.Slot]
	if a.done {
		return
	}
	if cause != "" {
		a.cause = cause
	}
	if a.cause == "" {
		a.cause = components.CauseEnergy
	}
	a.done = true
	a.progress = *progress

	e.lifetimes.End(a.genomeID, e.tick, a.cause, progress.Fitness, progress.Collisions, progress.Refuels, progress.Nudges)
	e.collector.RecordDeath(a.cause)
	e.agentMapper.Remove(entity)
}
