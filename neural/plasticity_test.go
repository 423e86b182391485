package neural

import (
	"math"
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

func TestNudge(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
	}{
		{"pain", -0.1},
		{"reward", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			genome := CreateMinimalBrainGenome(1, testInputs, rand.New(rand.NewSource(1)))
			genome.Genes[0].IsEnabled = false

			before := make([]float64, len(genome.Genes))
			for i, g := range genome.Genes {
				before[i] = g.Link.ConnectionWeight
			}

			n := Nudge(genome, tt.factor, rand.New(rand.NewSource(2)))
			if n != len(genome.Genes)-1 {
				t.Errorf("expected %d nudged genes, got %d", len(genome.Genes)-1, n)
			}

			for i, g := range genome.Genes {
				delta := g.Link.ConnectionWeight - before[i]
				if !g.IsEnabled {
					if delta != 0 {
						t.Errorf("disabled gene %d changed by %f", i, delta)
					}
					continue
				}
				// Each delta is rng.Float64()*factor, so it shares the sign of factor
				if math.Abs(delta) > math.Abs(tt.factor) || delta*tt.factor < 0 {
					t.Errorf("gene %d delta %f outside [0, %f]", i, delta, tt.factor)
				}
			}
			if genome.Genes[0].IsEnabled {
				t.Error("nudge must not re-enable genes")
			}
		})
	}
}

func TestNudgeEmptyGenome(t *testing.T) {
	genome := genetics.NewGenome(1, nil, brainNodes(testInputs), nil)
	if n := Nudge(genome, 0.5, rand.New(rand.NewSource(1))); n != 0 {
		t.Errorf("expected no nudges on a genome without genes, got %d", n)
	}
	if len(genome.Genes) != 0 {
		t.Error("nudge must not add genes")
	}
	if n := Nudge(nil, 0.5, rand.New(rand.NewSource(1))); n != 0 {
		t.Errorf("nil genome: expected 0, got %d", n)
	}
}

func TestNudgePreservesTopology(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	genome := CreateBrainGenome(1, testInputs, 0.6, rng)
	nodes, genes := len(genome.Nodes), len(genome.Genes)

	for i := 0; i < 20; i++ {
		Nudge(genome, -0.1, rng)
	}
	if len(genome.Nodes) != nodes || len(genome.Genes) != genes {
		t.Errorf("topology changed: %d/%d -> %d/%d", nodes, genes, len(genome.Nodes), len(genome.Genes))
	}
}

func TestPlasticityRebuildsController(t *testing.T) {
	genome := CreateMinimalBrainGenome(1, testInputs, rand.New(rand.NewSource(4)))
	ctrl, err := NewBrainController(genome)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	inputs := []float64{1, 1, 1, 1, 1}
	out, _ := ctrl.Activate(inputs)
	before := append([]float64(nil), out...)

	p := Plasticity{Enabled: true, PainFactor: -0.5, RewardFactor: 0.5}
	changed, err := p.OnPain(genome, ctrl, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("OnPain failed: %v", err)
	}
	if !changed {
		t.Fatal("expected the genome to change")
	}

	out, _ = ctrl.Activate(inputs)
	same := true
	for i := range before {
		if math.Abs(before[i]-out[i]) > 1e-12 {
			same = false
		}
	}
	if same {
		t.Error("controller outputs did not change after nudge and rebuild")
	}
}

func TestPlasticityDisabled(t *testing.T) {
	genome := CreateMinimalBrainGenome(1, testInputs, rand.New(rand.NewSource(4)))
	w := genome.Genes[0].Link.ConnectionWeight

	p := Plasticity{PainFactor: -0.5}
	changed, err := p.OnPain(genome, nil, rand.New(rand.NewSource(5)))
	if err != nil || changed {
		t.Errorf("disabled plasticity: changed=%v err=%v", changed, err)
	}
	if genome.Genes[0].Link.ConnectionWeight != w {
		t.Error("disabled plasticity changed a weight")
	}
}

func TestNudgeIsNotClamped(t *testing.T) {
	genome := CreateMinimalBrainGenome(1, testInputs, rand.New(rand.NewSource(6)))
	for _, g := range genome.Genes {
		g.IsEnabled = true
		g.Link.ConnectionWeight = maxConnectionWeight
	}

	for i := 0; i < 10; i++ {
		Nudge(genome, 1, rand.New(rand.NewSource(int64(i+7))))
	}
	for i, g := range genome.Genes {
		if g.Link.ConnectionWeight <= maxConnectionWeight {
			t.Errorf("gene %d weight %f was held at the mutation bound", i, g.Link.ConnectionWeight)
		}
	}
}
