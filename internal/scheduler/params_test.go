package scheduler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParamsFilePartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	raw := "initial_stability_days: 2.5\nmax_difficulty: 4.0\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParamsFile(path)
	if err != nil {
		t.Fatalf("LoadParamsFile: %v", err)
	}
	if p.InitialStabilityDays != 2.5 {
		t.Fatalf("initial stability=%v, want 2.5", p.InitialStabilityDays)
	}
	if p.MaxDifficulty != 4.0 {
		t.Fatalf("max difficulty=%v, want 4.0", p.MaxDifficulty)
	}
	// untouched fields fall back to defaults
	if p.GrowthCeil != DefaultParams().GrowthCeil {
		t.Fatalf("growth ceil=%v, want default %v", p.GrowthCeil, DefaultParams().GrowthCeil)
	}
}

func TestNormalizedGrowthDefaults(t *testing.T) {
	p := Params{GrowthFloor: 1.5}.normalized()
	if p.GrowthCeil != DefaultParams().GrowthCeil {
		t.Fatalf("growth ceil=%v, want default %v", p.GrowthCeil, DefaultParams().GrowthCeil)
	}
	if p.GrowthFloor != 1.5 {
		t.Fatalf("growth floor=%v, want 1.5", p.GrowthFloor)
	}
}

func TestNormalizedRepairsInvertedBounds(t *testing.T) {
	p := Params{MinDifficulty: 5.0, MaxDifficulty: 0.3}.normalized()
	if p.MaxDifficulty < p.MinDifficulty {
		t.Fatalf("bounds still inverted: [%v, %v]", p.MinDifficulty, p.MaxDifficulty)
	}
}

func TestLoadParamsFileMissing(t *testing.T) {
	if _, err := LoadParamsFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
