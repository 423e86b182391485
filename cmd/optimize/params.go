package main

import (
	"github.com/pthm-cable/axiogen/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Mutation
			{Name: "weight_mut_power", Path: "evolution.weight_mut_power", Min: 0.5, Max: 4.0},
			{Name: "mutate_link_weights_prob", Path: "evolution.mutate_link_weights_prob", Min: 0.3, Max: 1.0},
			{Name: "mutate_add_node_prob", Path: "evolution.mutate_add_node_prob", Min: 0.0, Max: 0.15},
			{Name: "mutate_add_link_prob", Path: "evolution.mutate_add_link_prob", Min: 0.0, Max: 0.3},
			// Speciation
			{Name: "compat_threshold", Path: "evolution.compat_threshold", Min: 0.5, Max: 8.0},
			// Selection
			{Name: "survival_thresh", Path: "evolution.survival_thresh", Min: 0.1, Max: 0.6},
			{Name: "initial_connection_prob", Path: "evolution.initial_connection_prob", Min: 0.1, Max: 1.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.Evolution.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	evo := &cfg.Evolution
	evo.WeightMutPower = c[0]
	evo.MutateLinkWeightsProb = c[1]
	evo.MutateAddNodeProb = c[2]
	evo.MutateAddLinkProb = c[3]
	evo.CompatThreshold = c[4]
	evo.SurvivalThresh = c[5]
	evo.InitialConnectionProb = c[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	evo := cfg.Evolution
	return []float64{
		evo.WeightMutPower,
		evo.MutateLinkWeightsProb,
		evo.MutateAddNodeProb,
		evo.MutateAddLinkProb,
		evo.CompatThreshold,
		evo.SurvivalThresh,
		evo.InitialConnectionProb,
	}
}
