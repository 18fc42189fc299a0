package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	StepsPerTick   int `yaml:"steps_per_tick"`
	MaxTicksPerRun int `yaml:"max_ticks_per_run"`

	Haul  Haul          `yaml:"haul"`
	Agent AgentDefaults `yaml:"agent"`
}

type Haul struct {
	MaxHaulContesters      int     `yaml:"max_haul_contesters"`
	BundleSearchRadius     float64 `yaml:"bundle_search_radius"`
	OpportunisticByDefault bool    `yaml:"opportunistic_by_default"`
	DropSearchRadius       int     `yaml:"drop_search_radius"`
}

type AgentDefaults struct {
	CarryLimit int     `yaml:"carry_limit"`
	MassLimit  float64 `yaml:"mass_limit"`
	GearMass   float64 `yaml:"gear_mass"`
}

func Default() Tuning {
	return Tuning{
		TickRateHz:     5,
		StepsPerTick:   16,
		MaxTicksPerRun: 5000,
		Haul: Haul{
			MaxHaulContesters:      5,
			BundleSearchRadius:     8,
			OpportunisticByDefault: true,
			DropSearchRadius:       3,
		},
		Agent: AgentDefaults{
			CarryLimit: 75,
			MassLimit:  35,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.StepsPerTick <= 0 {
		return fmt.Errorf("steps_per_tick must be > 0")
	}
	if t.Haul.MaxHaulContesters <= 0 {
		return fmt.Errorf("haul.max_haul_contesters must be > 0")
	}
	if t.Haul.BundleSearchRadius < 0 {
		return fmt.Errorf("haul.bundle_search_radius must be >= 0")
	}
	if t.Agent.CarryLimit < 0 || t.Agent.MassLimit < 0 {
		return fmt.Errorf("agent limits must be >= 0")
	}
	return nil
}
