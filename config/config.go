// Package config provides configuration loading and access for curriculum runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Run        RunConfig                  `yaml:"run"`
	Evolution  EvolutionConfig            `yaml:"evolution"`
	Storage    StorageConfig              `yaml:"storage"`
	Telemetry  TelemetryConfig            `yaml:"telemetry"`
	Scenarios  map[string]*ScenarioConfig `yaml:"scenarios"`
	Curriculum []StageConfig              `yaml:"curriculum"`
	Exam       ExamConfig                 `yaml:"exam"`
}

// RunConfig holds top-level run settings.
type RunConfig struct {
	Seed           int64  `yaml:"seed"`            // 0 = time-based
	Workers        int    `yaml:"workers"`         // 0 = GOMAXPROCS
	OutputDir      string `yaml:"output_dir"`      // CSV logs and config snapshot
	PopulationSize int    `yaml:"population_size"` // Genomes per generation
}

// EvolutionConfig holds the subset of NEAT options the engine uses.
type EvolutionConfig struct {
	WeightMutPower         float64 `yaml:"weight_mut_power"`
	MutateLinkWeightsProb  float64 `yaml:"mutate_link_weights_prob"`
	MutateAddNodeProb      float64 `yaml:"mutate_add_node_prob"`
	MutateAddLinkProb      float64 `yaml:"mutate_add_link_prob"`
	MutateToggleEnableProb float64 `yaml:"mutate_toggle_enable_prob"`
	CompatThreshold        float64 `yaml:"compat_threshold"`
	DisjointCoeff          float64 `yaml:"disjoint_coeff"`
	ExcessCoeff            float64 `yaml:"excess_coeff"`
	MutdiffCoeff           float64 `yaml:"mutdiff_coeff"`
	DropOffAge             int     `yaml:"drop_off_age"`
	SurvivalThresh         float64 `yaml:"survival_thresh"`
	Elitism                int     `yaml:"elitism"` // Champions copied unchanged per species
	InitialConnectionProb  float64 `yaml:"initial_connection_prob"`
}

// StorageConfig selects the checkpoint backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Path    string `yaml:"path"`    // directory (file) or database file (sqlite)
}

// TelemetryConfig holds logging cadence settings.
type TelemetryConfig struct {
	CSV        bool `yaml:"csv"`
	LogEvery   int  `yaml:"log_every"`   // Log generation stats every N generations
	PerfWindow int  `yaml:"perf_window"` // Ticks per perf window
}

// StageConfig is one entry in the curriculum.
type StageConfig struct {
	Name        string `yaml:"name"`
	Scenario    string `yaml:"scenario"`
	SeedFrom    string `yaml:"seed_from"` // Stage whose checkpoint seeds this one ("" = fresh)
	Generations int    `yaml:"generations"`
}

// ExamConfig configures the final evaluation run.
type ExamConfig struct {
	Champion string   `yaml:"champion"` // Stage whose checkpoint is examined
	Planets  []string `yaml:"planets"`
}

// ScenarioConfig enumerates everything that varies between scenarios.
type ScenarioConfig struct {
	World      WorldConfig      `yaml:"world"`
	Agent      AgentConfig      `yaml:"agent"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Shaping    ShapingConfig    `yaml:"shaping"`
	Plasticity PlasticityConfig `yaml:"plasticity"`
	Spawn      SpawnConfig      `yaml:"spawn"`
	Ticks      int              `yaml:"ticks"`
	Inputs     []string         `yaml:"inputs"`
	Count      string           `yaml:"count"` // "alive" or "success"
}

// RectConfig is an axis-aligned box in world units.
type RectConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// PointConfig is a world position.
type PointConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// WorldConfig describes the static layout of a scenario.
type WorldConfig struct {
	Width    float64        `yaml:"width"`
	Height   float64        `yaml:"height"`
	Friction float64        `yaml:"friction"`
	Border   float64        `yaml:"border"` // Border wall thickness (0 = no border walls)
	Walls    []RectConfig   `yaml:"walls"`
	Gate     *RectConfig    `yaml:"gate"`
	Switch   *PointConfig   `yaml:"switch"`
	Goal     *PointConfig   `yaml:"goal"`
	Maze     MazeConfig     `yaml:"maze"`
	Food     FoodConfig     `yaml:"food"`
	Relocate RelocateConfig `yaml:"relocate"`
}

// MazeConfig places random interior walls.
type MazeConfig struct {
	Count     int     `yaml:"count"`
	MinLength float64 `yaml:"min_length"`
	MaxLength float64 `yaml:"max_length"`
	Thickness float64 `yaml:"thickness"`
	MinX      float64 `yaml:"min_x"`
	MaxX      float64 `yaml:"max_x"`
	MinY      float64 `yaml:"min_y"`
	MaxY      float64 `yaml:"max_y"`
}

// FoodConfig scatters food pellets.
type FoodConfig struct {
	Count   int     `yaml:"count"`
	Margin  float64 `yaml:"margin"`
	Respawn bool    `yaml:"respawn"` // Respawn eaten food elsewhere, otherwise remove it
}

// RelocateConfig moves the goal periodically.
type RelocateConfig struct {
	Every   int     `yaml:"every"` // Ticks between relocations (0 = static goal)
	Margin  float64 `yaml:"margin"`
	Random  bool    `yaml:"random"`   // Randomize the initial goal position too
	OnReach bool    `yaml:"on_reach"` // Relocate whenever an agent reaches the goal
}

// AgentConfig holds the physical parameters of an embodied agent.
type AgentConfig struct {
	Radius      float64 `yaml:"radius"`
	BoxSize     float64 `yaml:"box_size"`
	MinSpeed    float64 `yaml:"min_speed"`
	MaxSpeed    float64 `yaml:"max_speed"`
	TurnGain    float64 `yaml:"turn_gain"`  // Degrees per tick at output 1.0
	AccelGain   float64 `yaml:"accel_gain"` // Speed change per tick at output 1.0
	BounceSpeed float64 `yaml:"bounce_speed"`
	Collision   string  `yaml:"collision"` // "revert" or "nudge"
	NudgeStep   float64 `yaml:"nudge_step"`
	MaxEnergy   float64 `yaml:"max_energy"`
	Drain       float64 `yaml:"drain"`
	IdleSpeed   float64 `yaml:"idle_speed"` // |speed| below this counts as idle (0 = disabled)
	IdleDrain   float64 `yaml:"idle_drain"`
}

// SensorConfig describes the sensor fan.
type SensorConfig struct {
	Mode          string    `yaml:"mode"` // "walls" or "food"
	Angles        []float64 `yaml:"angles"`
	Range         float64   `yaml:"range"`
	ConeTolerance float64   `yaml:"cone_tolerance"` // Radians, food mode only
	DistanceNorm  float64   `yaml:"distance_norm"`
}

// ShapingConfig holds the per-scenario fitness shaping rules.
type ShapingConfig struct {
	MaxDistance      float64 `yaml:"max_distance"`
	SwitchWeight     float64 `yaml:"switch_weight"`
	GoalWeight       float64 `yaml:"goal_weight"`
	MilestoneRadius  float64 `yaml:"milestone_radius"`
	MilestoneBonus   float64 `yaml:"milestone_bonus"`
	GoalRadius       float64 `yaml:"goal_radius"`
	GoalBonus        float64 `yaml:"goal_bonus"`
	GoalTerminal     bool    `yaml:"goal_terminal"`
	GoalEnergy       float64 `yaml:"goal_energy"` // Energy refill on a non-terminal goal touch
	CollisionPenalty float64 `yaml:"collision_penalty"`
	StagnationLimit  int     `yaml:"stagnation_limit"`
	SectorSize       float64 `yaml:"sector_size"`
	NoveltyBonus     float64 `yaml:"novelty_bonus"`
	RevisitPenalty   float64 `yaml:"revisit_penalty"`
	FoodRadius       float64 `yaml:"food_radius"`
	FoodReward       float64 `yaml:"food_reward"`
	FoodEnergy       float64 `yaml:"food_energy"` // 0 = refill to max
	IdlePenalty      float64 `yaml:"idle_penalty"`
	BoundaryMargin   float64 `yaml:"boundary_margin"`
	BoundaryPenalty  float64 `yaml:"boundary_penalty"`
}

// PlasticityConfig enables lifetime weight nudges.
type PlasticityConfig struct {
	Enabled      bool    `yaml:"enabled"`
	PainFactor   float64 `yaml:"pain_factor"`
	RewardFactor float64 `yaml:"reward_factor"`
}

// SpawnConfig places agents at episode start.
type SpawnConfig struct {
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	Jitter        float64 `yaml:"jitter"` // Uniform offset in [-jitter, jitter] on each axis
	Heading       float64 `yaml:"heading"`
	RandomHeading bool    `yaml:"random_heading"`
	HasKey        bool    `yaml:"has_key"` // Start holding the key
}

// Collision policies.
const (
	CollisionRevert = "revert"
	CollisionNudge  = "nudge"
)

// Sensor modes.
const (
	SensorWalls = "walls"
	SensorFood  = "food"
)

// Count modes for the per-generation stats record.
const (
	CountAlive   = "alive"
	CountSuccess = "success"
)

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.overlay(data); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes a user file over the loaded defaults. Only fields present
// in the file are overwritten; a scenario that already exists is merged
// field by field rather than replaced.
func (c *Config) overlay(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}

	rest := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	var scenarios *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Value == "scenarios" {
			scenarios = val
			continue
		}
		rest.Content = append(rest.Content, key, val)
	}
	if err := rest.Decode(c); err != nil {
		return err
	}
	if scenarios == nil || scenarios.Tag == "!!null" {
		return nil
	}
	if scenarios.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: scenarios must be a mapping", scenarios.Line)
	}

	if c.Scenarios == nil {
		c.Scenarios = make(map[string]*ScenarioConfig)
	}
	for i := 0; i+1 < len(scenarios.Content); i += 2 {
		name := scenarios.Content[i].Value
		sc := &ScenarioConfig{}
		if base, ok := c.Scenarios[name]; ok {
			cp := *base
			sc = &cp
		}
		if err := scenarios.Content[i+1].Decode(sc); err != nil {
			return fmt.Errorf("scenario %q: %w", name, err)
		}
		c.Scenarios[name] = sc
	}
	return nil
}

// applyDefaults fills values that a partial scenario may leave unset.
func (c *Config) applyDefaults() {
	for _, sc := range c.Scenarios {
		if sc.World.Width == 0 {
			sc.World.Width = 800
		}
		if sc.World.Height == 0 {
			sc.World.Height = 600
		}
		if sc.World.Friction == 0 {
			sc.World.Friction = 0.95
		}
		if sc.Agent.BoxSize == 0 {
			sc.Agent.BoxSize = 20
		}
		if sc.Agent.Collision == "" {
			sc.Agent.Collision = CollisionRevert
		}
		if sc.Sensor.Mode == "" {
			sc.Sensor.Mode = SensorWalls
		}
		if len(sc.Sensor.Angles) == 0 {
			sc.Sensor.Angles = []float64{-45, -20, 0, 20, 45}
		}
		if sc.Sensor.DistanceNorm == 0 {
			sc.Sensor.DistanceNorm = 800
		}
		if sc.Shaping.MaxDistance == 0 {
			sc.Shaping.MaxDistance = 800
		}
		if sc.Count == "" {
			sc.Count = CountAlive
		}
		if len(sc.Inputs) == 0 {
			sc.Inputs = []string{"radar"}
		}
	}
}

// Validate checks the invariants the simulation relies on.
func (c *Config) Validate() error {
	var errs []error
	for _, name := range c.ScenarioNames() {
		if err := c.Scenarios[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", name, err))
		}
	}
	for _, st := range c.Curriculum {
		if _, ok := c.Scenarios[st.Scenario]; !ok {
			errs = append(errs, fmt.Errorf("stage %q: unknown scenario %q", st.Name, st.Scenario))
		}
	}
	if c.Run.PopulationSize < 0 {
		errs = append(errs, fmt.Errorf("run.population_size must be >= 0, got %d", c.Run.PopulationSize))
	}
	return errors.Join(errs...)
}

// Validate checks a single scenario.
func (s *ScenarioConfig) Validate() error {
	var errs []error
	a := s.Agent
	if a.MinSpeed > 0 || a.MaxSpeed < 0 || a.MinSpeed > a.MaxSpeed {
		errs = append(errs, fmt.Errorf("agent speed range [%v, %v] must contain 0", a.MinSpeed, a.MaxSpeed))
	}
	if s.World.Friction <= 0 || s.World.Friction > 1 {
		errs = append(errs, fmt.Errorf("friction %v outside (0, 1]", s.World.Friction))
	}
	if s.Sensor.Range <= 0 {
		errs = append(errs, fmt.Errorf("sensor range must be positive"))
	}
	if a.Collision != CollisionRevert && a.Collision != CollisionNudge {
		errs = append(errs, fmt.Errorf("unknown collision policy %q", a.Collision))
	}
	if s.Sensor.Mode != SensorWalls && s.Sensor.Mode != SensorFood {
		errs = append(errs, fmt.Errorf("unknown sensor mode %q", s.Sensor.Mode))
	}
	if s.Ticks <= 0 {
		errs = append(errs, fmt.Errorf("ticks must be positive"))
	}
	if s.Count != CountAlive && s.Count != CountSuccess {
		errs = append(errs, fmt.Errorf("unknown count mode %q", s.Count))
	}
	return errors.Join(errs...)
}

// ScenarioNames returns scenario names in sorted order.
func (c *Config) ScenarioNames() []string {
	names := make([]string, 0, len(c.Scenarios))
	for name := range c.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario returns the named scenario config.
func (c *Config) Scenario(name string) (*ScenarioConfig, error) {
	sc, ok := c.Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return sc, nil
}

// Stage returns the named curriculum stage.
func (c *Config) Stage(name string) (StageConfig, error) {
	for _, st := range c.Curriculum {
		if st.Name == name {
			return st, nil
		}
	}
	return StageConfig{}, fmt.Errorf("unknown stage %q", name)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("copying config: %w", err)
	}
	return out, nil
}
