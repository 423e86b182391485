package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/axiogen/components"
	"github.com/pthm-cable/axiogen/config"
)

// Input slot names used in a scenario's input layout.
const (
	InputRadar         = "radar" // One slot per sensor ray
	InputSwitchDist    = "switch_dist"
	InputSwitchBearing = "switch_bearing"
	InputGoalDist      = "goal_dist"
	InputGoalBearing   = "goal_bearing"
	InputTargetDist    = "target_dist"
	InputTargetBearing = "target_bearing"
	InputAux           = "aux" // Constant 0, keeps exam layouts aligned
	InputKey           = "key"
	InputPain          = "pain"
	InputEnergy        = "energy"
)

// Controller input vectors must fall inside this range.
const (
	MinInputs = 5
	MaxInputs = 12
)

// SensorModel is a fan of rays cast relative to the agent heading.
type SensorModel struct {
	mode      string
	angles    []float64
	maxRange  float64
	tolerance float64
	distNorm  float64
}

// NewSensorModel creates a sensor model from its config.
func NewSensorModel(cfg config.SensorConfig) *SensorModel {
	angles := make([]float64, len(cfg.Angles))
	copy(angles, cfg.Angles)
	return &SensorModel{
		mode:      cfg.Mode,
		angles:    angles,
		maxRange:  cfg.Range,
		tolerance: cfg.ConeTolerance,
		distNorm:  cfg.DistanceNorm,
	}
}

// Rays returns the number of rays in the fan.
func (s *SensorModel) Rays() int {
	return len(s.angles)
}

// Distances fills dst with the raw distance of each ray, capped at MaxRange.
// Gates are sensed only while the agent lacks the key.
func (s *SensorModel) Distances(env *Environment, pose components.Pose, hasKey bool, dst []float64) []float64 {
	dst = dst[:0]
	origin := Point{X: pose.X, Y: pose.Y}
	for _, a := range s.angles {
		if s.mode == config.SensorFood {
			dst = append(dst, s.foodDistance(env, origin, pose.Heading+a))
		} else {
			dst = append(dst, env.Raycast(origin, pose.Heading+a, s.maxRange, !hasKey))
		}
	}
	return dst
}

// foodDistance returns the nearest food inside the ray's angular cone.
func (s *SensorModel) foodDistance(env *Environment, origin Point, rayDeg float64) float64 {
	rayRad := rayDeg * math.Pi / 180
	best := s.maxRange
	for _, f := range env.Foods {
		d := origin.Dist(f)
		if d >= best {
			continue
		}
		ang := math.Atan2(f.Y-origin.Y, f.X-origin.X)
		if angleDiff(ang, rayRad) < s.tolerance {
			best = d
		}
	}
	return best
}

// Normalize maps a raw distance to [0, 1]: 1 at contact, 0 at max range.
func (s *SensorModel) Normalize(d float64) float64 {
	return (s.maxRange - d) / s.maxRange
}

// InputCount returns the vector length a layout produces.
func (s *SensorModel) InputCount(layout []string) (int, error) {
	n := 0
	for _, slot := range layout {
		switch slot {
		case InputRadar:
			n += len(s.angles)
		case InputSwitchDist, InputSwitchBearing, InputGoalDist, InputGoalBearing,
			InputTargetDist, InputTargetBearing, InputAux, InputKey, InputPain, InputEnergy:
			n++
		default:
			return 0, fmt.Errorf("unknown input slot %q", slot)
		}
	}
	if n < MinInputs || n > MaxInputs {
		return 0, fmt.Errorf("input layout produces %d values, want %d..%d", n, MinInputs, MaxInputs)
	}
	return n, nil
}

// Inputs assembles the controller input vector for one agent into dst.
// The layout must have been checked with InputCount.
func (s *SensorModel) Inputs(layout []string, env *Environment, pose components.Pose, vitals components.Vitals, hasKey bool, scratch, dst []float64) []float64 {
	dst = dst[:0]
	at := Point{X: pose.X, Y: pose.Y}
	for _, slot := range layout {
		switch slot {
		case InputRadar:
			scratch = s.Distances(env, pose, hasKey, scratch)
			for _, d := range scratch {
				dst = append(dst, s.Normalize(d))
			}
		case InputSwitchDist:
			dst = append(dst, at.Dist(env.Switch)/s.distNorm)
		case InputSwitchBearing:
			dst = append(dst, bearing(at, pose.Heading, env.Switch))
		case InputGoalDist:
			dst = append(dst, at.Dist(env.Goal)/s.distNorm)
		case InputGoalBearing:
			dst = append(dst, bearing(at, pose.Heading, env.Goal))
		case InputTargetDist:
			dst = append(dst, at.Dist(env.Target())/s.distNorm)
		case InputTargetBearing:
			dst = append(dst, bearing(at, pose.Heading, env.Target()))
		case InputAux:
			dst = append(dst, 0)
		case InputKey:
			if hasKey {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case InputPain:
			dst = append(dst, vitals.Pain)
		case InputEnergy:
			if vitals.MaxEnergy > 0 {
				dst = append(dst, vitals.Energy/vitals.MaxEnergy)
			} else {
				dst = append(dst, 0)
			}
		}
	}
	return dst
}
