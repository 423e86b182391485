package game

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/mlange-42/ark/ecs"
	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/neural"
	"github.com/pthm-cable/axiogen/systems"
	"github.com/pthm-cable/axiogen/telemetry"
)

// ControllerFactory builds the runtime controller for a genome.
// *neural.NEATEngine satisfies it.
type ControllerFactory interface {
	Controller(g *genetics.Genome) (neural.Controller, error)
}

// Options tune an evaluator beyond its scenario.
type Options struct {
	Workers    int // Compute workers; 0 uses GOMAXPROCS
	PerfWindow int // Ticks averaged by the perf collector
}

// agent is the per-genome state that does not live in the ECS.
type agent struct {
	genomeID int
	genome   *genetics.Genome
	ctrl     neural.Controller
	rng      *rand.Rand
	entity   ecs.Entity

	// Set once when the agent stops
	done     bool
	cause    string
	progress components.Progress
}

// GenerationResult is what one evaluated generation hands back to the
// evolution engine and the reports.
type GenerationResult struct {
	Stats     telemetry.GenerationStats
	Fitness   map[int]float64
	BestID    int
	Lifetimes *telemetry.LifetimeTracker
}

// Evaluator runs generations of one scenario.
type Evaluator struct {
	name       string
	scenario   *config.ScenarioConfig
	sensors    *systems.SensorModel
	physics    *systems.Physics
	shaper     *systems.FitnessShaper
	plasticity neural.Plasticity
	factory    ControllerFactory
	inputs     int

	perf     *telemetry.PerfCollector
	parallel *parallelState
	phase    Phase

	// Per-generation state
	rc        *RunContext
	env       *systems.Environment
	world     *ecs.World
	agents    []agent
	mutations systems.Mutations
	collector *telemetry.Collector
	lifetimes *telemetry.LifetimeTracker
	tick      int

	agentMapper *ecs.Map5[
		components.Pose,
		components.Motion,
		components.Vitals,
		components.Progress,
		components.Agent,
	]
	agentFilter *ecs.Filter5[
		components.Pose,
		components.Motion,
		components.Vitals,
		components.Progress,
		components.Agent,
	]
	poseMap     *ecs.Map1[components.Pose]
	motionMap   *ecs.Map1[components.Motion]
	vitalsMap   *ecs.Map1[components.Vitals]
	progressMap *ecs.Map1[components.Progress]
	tagMap      *ecs.Map1[components.Agent]
}

// NewEvaluator creates an evaluator for a validated scenario.
func NewEvaluator(name string, sc *config.ScenarioConfig, factory ControllerFactory, opts Options) (*Evaluator, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario %q is nil", name)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", name, err)
	}
	if factory == nil {
		return nil, fmt.Errorf("scenario %q: controller factory is required", name)
	}

	sensors := systems.NewSensorModel(sc.Sensor)
	inputs, err := sensors.InputCount(sc.Inputs)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", name, err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Evaluator{
		name:     name,
		scenario: sc,
		sensors:  sensors,
		physics:  systems.NewPhysics(sc),
		shaper:   systems.NewFitnessShaper(sc.Shaping),
		plasticity: neural.Plasticity{
			Enabled:      sc.Plasticity.Enabled,
			PainFactor:   sc.Plasticity.PainFactor,
			RewardFactor: sc.Plasticity.RewardFactor,
		},
		factory:  factory,
		inputs:   inputs,
		perf:     telemetry.NewPerfCollector(opts.PerfWindow),
		parallel: newParallelState(workers, inputs, sensors.Rays()),
	}, nil
}

// Inputs returns the controller input count the scenario's layout produces.
func (e *Evaluator) Inputs() int {
	return e.inputs
}

// Phase returns the evaluator's current state.
func (e *Evaluator) Phase() Phase {
	return e.phase
}

// RunGeneration evaluates every genome of pop for one episode.
//
// The checkpoint of the best genome is written only after the episode has
// fully run, so an error or a cancelled ctx never replaces the checkpoint
// of the last completed generation.
func (e *Evaluator) RunGeneration(ctx context.Context, rc *RunContext, pop neural.Population) (*GenerationResult, error) {
	if rc == nil || rc.RNG == nil {
		return nil, fmt.Errorf("run context with a random source is required")
	}
	start := time.Now()
	defer e.parallel.stopWorkers()

	e.setPhase(rc, PhaseInit)
	if err := e.initGeneration(rc, pop); err != nil {
		return nil, err
	}

	e.setPhase(rc, PhaseRunning)
	if err := e.runEpisode(ctx); err != nil {
		return nil, err
	}

	e.setPhase(rc, PhaseDone)
	return e.finishGeneration(ctx, start)
}

func (e *Evaluator) setPhase(rc *RunContext, p Phase) {
	e.phase = p
	rc.logger().Debug("phase", "stage", rc.Stage, "generation", rc.Generation, "phase", p.String())
}

// initGeneration builds a fresh world and spawns one agent per genome with
// fitness zeroed.
func (e *Evaluator) initGeneration(rc *RunContext, pop neural.Population) error {
	e.rc = rc
	e.tick = 0
	e.env = systems.NewEnvironment(e.scenario.World, rc.RNG)
	e.collector = telemetry.NewCollector()
	e.lifetimes = telemetry.NewLifetimeTracker()
	e.mutations.Reset()
	e.perf.Reset()

	e.world = ecs.NewWorld()
	e.agentMapper = ecs.NewMap5[
		components.Pose,
		components.Motion,
		components.Vitals,
		components.Progress,
		components.Agent,
	](e.world)
	e.agentFilter = ecs.NewFilter5[
		components.Pose,
		components.Motion,
		components.Vitals,
		components.Progress,
		components.Agent,
	](e.world)
	e.poseMap = ecs.NewMap1[components.Pose](e.world)
	e.motionMap = ecs.NewMap1[components.Motion](e.world)
	e.vitalsMap = ecs.NewMap1[components.Vitals](e.world)
	e.progressMap = ecs.NewMap1[components.Progress](e.world)
	e.tagMap = ecs.NewMap1[components.Agent](e.world)

	return e.spawnPopulation(pop)
}

// runEpisode ticks until the budget is spent or no agent is alive.
func (e *Evaluator) runEpisode(ctx context.Context) error {
	if len(e.agents) == 0 {
		return nil
	}
	for e.tick = 0; e.tick < e.scenario.Ticks; e.tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.perf.StartTick()
		e.perf.StartPhase(telemetry.PhaseWorld)
		e.env.Tick(e.tick, e.rc.RNG)

		alive, err := e.step()
		e.perf.EndTick()
		if err != nil {
			return err
		}
		if alive == 0 {
			e.tick++
			break
		}
	}

	// Agents still running when the budget ends stop on timeout
	e.finishRemaining(components.CauseTimeout)
	return nil
}
