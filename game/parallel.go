package game

import (
	"fmt"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/systems"
	"github.com/pthm-cable/axiogen/telemetry"
)

// parallelThreshold is the minimum agent count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// agentSnapshot captures an agent's state at the start of a tick. Compute
// works on the copy and never touches the ECS.
type agentSnapshot struct {
	Entity   ecs.Entity
	Slot     int
	Pose     components.Pose
	Motion   components.Motion
	Vitals   components.Vitals
	Progress components.Progress
}

// intent is the computed next state of one agent, applied after the
// compute phase.
type intent struct {
	Pose     components.Pose
	Motion   components.Motion
	Vitals   components.Vitals
	Progress components.Progress
	Step     systems.StepResult
	Shape    systems.ShapeResult
	Nudges   int
	Err      error

	eaten []int // Backing store for Shape.Eaten
}

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Inputs []float64
	Rays   []float64
}

// workChunk represents a range of snapshots for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for the per-tick compute phase.
type parallelState struct {
	snapshots  []agentSnapshot
	intents    []intent
	scratches  []workerScratch
	numWorkers int

	// Worker pool channels
	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newParallelState(numWorkers, inputs, rays int) *parallelState {
	if numWorkers < 1 {
		numWorkers = 1
	}
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		scratches[i].Inputs = make([]float64, 0, inputs)
		scratches[i].Rays = make([]float64, 0, rays)
	}
	return &parallelState{
		numWorkers: numWorkers,
		scratches:  scratches,
		snapshots:  make([]agentSnapshot, 0, 128),
		intents:    make([]intent, 0, 128),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(e *Evaluator) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(e, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(e *Evaluator, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			e.computeChunk(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// step runs one tick for every alive agent and returns how many are still
// alive afterwards.
func (e *Evaluator) step() (int, error) {
	p := e.parallel

	// Phase A: Build snapshots (single-threaded)
	e.perf.StartPhase(telemetry.PhaseSnapshot)
	p.snapshots = p.snapshots[:0]

	query := e.agentFilter.Query()
	for query.Next() {
		pose, motion, vitals, progress, tag := query.Get()
		if !vitals.Alive {
			continue
		}
		p.snapshots = append(p.snapshots, agentSnapshot{
			Entity:   query.Entity(),
			Slot:     tag.Slot,
			Pose:     *pose,
			Motion:   *motion,
			Vitals:   *vitals,
			Progress: *progress,
		})
	}

	n := len(p.snapshots)
	if n == 0 {
		return 0, nil
	}

	if cap(p.intents) < n {
		grown := make([]intent, n)
		copy(grown, p.intents[:cap(p.intents)])
		p.intents = grown
	}
	p.intents = p.intents[:n]

	// Phase B: Compute - choose single or parallel based on agent count
	e.perf.StartPhase(telemetry.PhaseCompute)
	if n < parallelThreshold || p.numWorkers == 1 {
		e.computeChunk(0, n, &p.scratches[0])
	} else {
		e.computeParallel(n)
	}

	// Phase C: Apply intents (single-threaded, preserves determinism)
	e.perf.StartPhase(telemetry.PhaseApply)
	if err := e.applyIntents(); err != nil {
		return 0, err
	}

	e.perf.StartPhase(telemetry.PhaseWorld)
	e.env.Apply(&e.mutations, e.rc.RNG)
	e.mutations.Reset()

	return e.cleanupDead(), nil
}

// computeParallel dispatches work to the worker pool.
func (e *Evaluator) computeParallel(n int) {
	p := e.parallel
	if !p.running {
		p.startWorkers(e)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk runs sense, decide, act and shape for a range of snapshots.
// Each agent reads only its own snapshot, its own controller and rng, and
// the world as it stood at the start of the tick.
func (e *Evaluator) computeChunk(i0, i1 int, scratch *workerScratch) {
	sc := e.scenario

	for i := i0; i < i1; i++ {
		snap := &e.parallel.snapshots[i]
		in := &e.parallel.intents[i]
		a := &e.agents[snap.Slot]

		in.Pose = snap.Pose
		in.Motion = snap.Motion
		in.Vitals = snap.Vitals
		in.Progress = snap.Progress
		in.Nudges = 0
		in.Err = nil

		scratch.Inputs = e.sensors.Inputs(sc.Inputs, e.env, in.Pose, in.Vitals, in.Progress.HasKey, scratch.Rays[:0], scratch.Inputs[:0])
		out, err := a.ctrl.Activate(scratch.Inputs)
		if err != nil {
			in.Err = err
			continue
		}

		act := systems.ActionFromOutputs(out)
		in.Step = e.physics.Step(e.env, &in.Pose, &in.Motion, &in.Vitals, in.Progress.HasKey, act)
		in.Shape = e.shaper.Apply(e.env, in.Pose, &in.Vitals, &in.Progress, in.Step, in.eaten)
		in.eaten = in.Shape.Eaten

		if in.Step.Collided {
			changed, err := e.plasticity.OnPain(a.genome, a.ctrl, a.rng)
			if err != nil {
				in.Err = err
				continue
			}
			if changed {
				in.Nudges++
			}
		}
		if in.Shape.Milestone {
			changed, err := e.plasticity.OnReward(a.genome, a.ctrl, a.rng)
			if err != nil {
				in.Err = err
				continue
			}
			if changed {
				in.Nudges++
			}
		}
	}
}

// applyIntents writes computed results back to ECS components and queues
// world mutations. The first compute error aborts the generation.
func (e *Evaluator) applyIntents() error {
	for i := range e.parallel.snapshots {
		snap := &e.parallel.snapshots[i]
		in := &e.parallel.intents[i]
		a := &e.agents[snap.Slot]

		if in.Err != nil {
			return fmt.Errorf("genome %d at tick %d: %w", a.genomeID, e.tick, in.Err)
		}

		pose := e.poseMap.Get(snap.Entity)
		motion := e.motionMap.Get(snap.Entity)
		vitals := e.vitalsMap.Get(snap.Entity)
		progress := e.progressMap.Get(snap.Entity)
		if pose == nil || motion == nil || vitals == nil || progress == nil {
			continue
		}

		*pose = in.Pose
		*motion = in.Motion
		*vitals = in.Vitals
		in.Progress.Nudges += in.Nudges
		*progress = in.Progress

		for _, idx := range in.Shape.Eaten {
			e.mutations.EatFood(idx)
		}
		if in.Shape.GoalReached {
			e.mutations.ReachGoal()
		}

		e.recordEvents(in)
		e.lifetimes.UpdateEnergy(a.genomeID, vitals.Energy)
		if !vitals.Alive {
			a.cause = deathCause(in)
		}
	}
	return nil
}

func (e *Evaluator) recordEvents(in *intent) {
	c := e.collector
	if in.Step.Collided {
		c.RecordCollision()
	}
	if in.Shape.Milestone {
		c.RecordMilestone()
	}
	if in.Shape.GoalReached {
		c.RecordGoal()
	}
	if len(in.Shape.Eaten) > 0 {
		c.RecordFood(len(in.Shape.Eaten))
	}
	for i := 0; i < in.Nudges; i++ {
		c.RecordNudge()
	}
}
