package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"clinical-alert-engine/internal/alerts"
)

// RuleOverrides is the optional YAML file retuning the built-in rules.
//
//	riskThresholdHigh: 0.85
//	rules:
//	  critical_vitals:
//	    cooldownMinutes: 15
//	  abnormal_labs:
//	    enabled: false
type RuleOverrides struct {
	RiskThresholdHigh *float64                `yaml:"riskThresholdHigh"`
	Rules             map[string]RuleOverride `yaml:"rules"`
}

type RuleOverride struct {
	CooldownMinutes *int  `yaml:"cooldownMinutes"`
	Enabled         *bool `yaml:"enabled"`
}

// LoadRuleOverrides reads and validates the overrides file. A malformed
// file is a startup error; an empty path yields empty overrides.
func LoadRuleOverrides(path string) (RuleOverrides, error) {
	if path == "" {
		return RuleOverrides{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return RuleOverrides{}, fmt.Errorf("read rule overrides: %w", err)
	}
	var overrides RuleOverrides
	if err := yaml.Unmarshal(content, &overrides); err != nil {
		return RuleOverrides{}, fmt.Errorf("parse rule overrides: %w", err)
	}
	if err := overrides.Validate(); err != nil {
		return RuleOverrides{}, err
	}
	return overrides, nil
}

func (o RuleOverrides) Validate() error {
	if o.RiskThresholdHigh != nil && (*o.RiskThresholdHigh <= 0 || *o.RiskThresholdHigh > 1) {
		return fmt.Errorf("riskThresholdHigh must be in (0, 1], got %v", *o.RiskThresholdHigh)
	}
	for id, override := range o.Rules {
		if override.CooldownMinutes != nil && *override.CooldownMinutes <= 0 {
			return fmt.Errorf("rule %q: cooldownMinutes must be positive, got %d", id, *override.CooldownMinutes)
		}
	}
	return nil
}

// ToRuleOverrides converts the YAML form into the engine's override map.
func (o RuleOverrides) ToRuleOverrides() map[string]alerts.RuleOverride {
	result := make(map[string]alerts.RuleOverride, len(o.Rules))
	for id, override := range o.Rules {
		converted := alerts.RuleOverride{Enabled: override.Enabled}
		if override.CooldownMinutes != nil {
			cooldown := time.Duration(*override.CooldownMinutes) * time.Minute
			converted.Cooldown = &cooldown
		}
		result[id] = converted
	}
	return result
}

// RiskThreshold returns the configured high-risk threshold or the default.
func (o RuleOverrides) RiskThreshold() float64 {
	if o.RiskThresholdHigh != nil {
		return *o.RiskThresholdHigh
	}
	return alerts.DefaultRiskThresholdHigh
}
