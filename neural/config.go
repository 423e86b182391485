package neural

import (
	"github.com/yaricom/goNEAT/v4/neat"

	"github.com/pthm-cable/axiogen/config"
)

// DefaultNEATOptions returns NEAT options tuned for small navigation
// controllers.
func DefaultNEATOptions() *neat.Options {
	return &neat.Options{
		// Weight mutation
		WeightMutPower:        2.5,
		MutateLinkWeightsProb: 0.8,

		// Structural mutation rates
		MutateAddNodeProb:      0.03,
		MutateAddLinkProb:      0.08,
		MutateToggleEnableProb: 0.01,

		// Mating probabilities
		MutateOnlyProb:        0.25,
		MateMultipointProb:    0.6,
		MateMultipointAvgProb: 0.4,
		MateOnlyProb:          0.2,

		// Speciation
		CompatThreshold: 3.0,
		DisjointCoeff:   1.0,
		ExcessCoeff:     1.0,
		MutdiffCoeff:    0.5,

		// Species management
		DropOffAge:      15,
		SurvivalThresh:  0.2,
		AgeSignificance: 1.0,

		PopSize: 50,
	}
}

// OptionsFromConfig overlays the evolution section of a run config onto the
// defaults. Zero values keep the default.
func OptionsFromConfig(cfg config.EvolutionConfig, popSize int) *neat.Options {
	opts := DefaultNEATOptions()
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&opts.WeightMutPower, cfg.WeightMutPower)
	set(&opts.MutateLinkWeightsProb, cfg.MutateLinkWeightsProb)
	set(&opts.MutateAddNodeProb, cfg.MutateAddNodeProb)
	set(&opts.MutateAddLinkProb, cfg.MutateAddLinkProb)
	set(&opts.MutateToggleEnableProb, cfg.MutateToggleEnableProb)
	set(&opts.CompatThreshold, cfg.CompatThreshold)
	set(&opts.DisjointCoeff, cfg.DisjointCoeff)
	set(&opts.ExcessCoeff, cfg.ExcessCoeff)
	set(&opts.MutdiffCoeff, cfg.MutdiffCoeff)
	set(&opts.SurvivalThresh, cfg.SurvivalThresh)
	if cfg.DropOffAge > 0 {
		opts.DropOffAge = cfg.DropOffAge
	}
	if popSize > 0 {
		opts.PopSize = popSize
	}
	return opts
}
