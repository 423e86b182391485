package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/axiogen/config"
	"github.com/pthm-cable/axiogen/curriculum"
	"github.com/pthm-cable/axiogen/telemetry"
)

func TestParamVectorRoundTrip(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	raw := pv.ExtractFromConfig(cfg)
	if len(raw) != pv.Dim() {
		t.Fatalf("extracted %d values, want %d", len(raw), pv.Dim())
	}
	for i, spec := range pv.Specs {
		if raw[i] < spec.Min || raw[i] > spec.Max {
			t.Errorf("default %s = %v outside [%v, %v]", spec.Name, raw[i], spec.Min, spec.Max)
		}
	}

	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: round trip %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestApplyToConfigClamps(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	values := make([]float64, pv.Dim())
	for i := range values {
		values[i] = 100
	}
	values[2] = -1

	pv.ApplyToConfig(cfg, values)
	got := pv.ExtractFromConfig(cfg)
	for i, spec := range pv.Specs {
		want := spec.Max
		if i == 2 {
			want = spec.Min
		}
		if got[i] != want {
			t.Errorf("%s = %v, want %v", spec.Name, got[i], want)
		}
	}
}

func TestComputeFitness(t *testing.T) {
	results := []curriculum.StageResult{
		{Last: telemetry.GenerationStats{Population: 10, AliveOrSuccess: 5}, Best: telemetry.HallEntry{Fitness: 50}},
		{Last: telemetry.GenerationStats{Population: 10, AliveOrSuccess: 10}, Best: telemetry.HallEntry{Fitness: 200}},
	}
	fitness, success := computeFitness(results)
	if math.Abs(success-0.75) > 1e-9 {
		t.Errorf("success = %v, want 0.75", success)
	}
	if want := -(200 + successWeight*0.75); math.Abs(fitness-want) > 1e-9 {
		t.Errorf("fitness = %v, want %v", fitness, want)
	}
}
