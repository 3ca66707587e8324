package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params are the forgetting-curve constants. Every field can be
// overridden from a YAML file (SCHEDULER_PARAMS_FILE); zero values fall
// back to the defaults below.
type Params struct {
	// First-exposure stability, in days.
	InitialStabilityDays float64 `yaml:"initial_stability_days"`
	// Stability after a lapse, in days. Also the global minimum.
	StabilityFloorDays float64 `yaml:"stability_floor_days"`
	// Hard ceiling on stability growth, in days.
	MaxStabilityDays float64 `yaml:"max_stability_days"`

	// Difficulty factor bounds.
	MinDifficulty float64 `yaml:"min_difficulty"`
	MaxDifficulty float64 `yaml:"max_difficulty"`

	// Difficulty nudges: EasyStep down on correct, HardStep up on a lapse.
	EasyStep float64 `yaml:"easy_step"`
	HardStep float64 `yaml:"hard_step"`

	// Stability multiplier range on a correct outcome. The item's difficulty
	// factor interpolates between these: easiest items grow by GrowthCeil,
	// hardest by GrowthFloor.
	GrowthFloor float64 `yaml:"growth_floor"`
	GrowthCeil  float64 `yaml:"growth_ceil"`
}

func DefaultParams() Params {
	return Params{
		InitialStabilityDays: 1.0,
		StabilityFloorDays:   1.0,
		MaxStabilityDays:     365.0,
		MinDifficulty:        0.3,
		MaxDifficulty:        5.0,
		EasyStep:             0.15,
		HardStep:             0.20,
		GrowthFloor:          1.3,
		GrowthCeil:           2.5,
	}
}

// LoadParamsFile reads a YAML param file. Fields left at zero fall back to
// the defaults, so a partial file is fine.
func LoadParamsFile(path string) (Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read scheduler params: %w", err)
	}
	p := Params{}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Params{}, fmt.Errorf("parse scheduler params: %w", err)
	}
	return p.normalized(), nil
}

// normalized fills zero fields from defaults and repairs inverted bounds.
func (p Params) normalized() Params {
	def := DefaultParams()
	if p.InitialStabilityDays <= 0 {
		p.InitialStabilityDays = def.InitialStabilityDays
	}
	if p.StabilityFloorDays <= 0 {
		p.StabilityFloorDays = def.StabilityFloorDays
	}
	if p.MaxStabilityDays <= 0 {
		p.MaxStabilityDays = def.MaxStabilityDays
	}
	if p.MaxStabilityDays < p.StabilityFloorDays {
		p.MaxStabilityDays = p.StabilityFloorDays
	}
	if p.MinDifficulty <= 0 {
		p.MinDifficulty = def.MinDifficulty
	}
	if p.MaxDifficulty <= 0 {
		p.MaxDifficulty = def.MaxDifficulty
	}
	if p.MaxDifficulty < p.MinDifficulty {
		p.MaxDifficulty = p.MinDifficulty
	}
	if p.EasyStep <= 0 {
		p.EasyStep = def.EasyStep
	}
	if p.HardStep <= 0 {
		p.HardStep = def.HardStep
	}
	if p.GrowthFloor < 1.0 {
		p.GrowthFloor = def.GrowthFloor
	}
	if p.GrowthCeil <= 0 {
		p.GrowthCeil = def.GrowthCeil
	}
	if p.GrowthCeil < p.GrowthFloor {
		p.GrowthCeil = p.GrowthFloor
	}
	return p
}
