package alerts

import (
	"fmt"
	"time"
)

// DefaultRiskThresholdHigh is the readmission risk score at or above which
// the built-in risk rule fires.
const DefaultRiskThresholdHigh = 0.8

// Predicate decides whether an event matches a rule. Predicates must be pure;
// a panic inside a predicate is recovered and treated as no match.
type Predicate func(Event) bool

type Rule struct {
	ID              string
	Type            AlertType
	Category        Category
	Severity        Severity
	MessageTemplate string
	Cooldown        time.Duration
	Predicate       Predicate
}

// RuleSet is an immutable collection of rules, validated once at load.
type RuleSet struct {
	rules      []Rule
	byCategory map[Category][]Rule
}

func NewRuleSet(rules []Rule) (*RuleSet, error) {
	seen := map[string]bool{}
	byCategory := map[Category][]Rule{}
	for _, rule := range rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule with empty id")
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		if rule.Cooldown <= 0 {
			return nil, fmt.Errorf("rule %q: cooldown must be positive", rule.ID)
		}
		if !KnownSeverity(rule.Severity) {
			return nil, fmt.Errorf("rule %q: unknown severity %q", rule.ID, rule.Severity)
		}
		if rule.Predicate == nil {
			return nil, fmt.Errorf("rule %q: missing predicate", rule.ID)
		}
		seen[rule.ID] = true
		byCategory[rule.Category] = append(byCategory[rule.Category], rule)
	}
	return &RuleSet{rules: rules, byCategory: byCategory}, nil
}

func (s *RuleSet) ForCategory(c Category) []Rule {
	return s.byCategory[c]
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}

// RuleOverride adjusts a built-in rule from configuration.
type RuleOverride struct {
	Cooldown *time.Duration
	Enabled  *bool
}

// BuiltinRules returns the predefined clinical rules. riskThresholdHigh
// tunes the readmission rule; overrides may retune cooldowns or disable
// rules entirely.
func BuiltinRules(riskThresholdHigh float64, overrides map[string]RuleOverride) []Rule {
	if riskThresholdHigh <= 0 {
		riskThresholdHigh = DefaultRiskThresholdHigh
	}
	rules := []Rule{
		{
			ID:              "high_risk_readmission",
			Type:            TypeRiskThreshold,
			Category:        CategoryRisk,
			Severity:        SeverityHigh,
			MessageTemplate: "High readmission risk detected for patient {patient_id} (score: {risk_score:.2f})",
			Cooldown:        120 * time.Minute,
			Predicate: func(e Event) bool {
				return e.stringField("risk_type") == "readmission" &&
					e.floatField("risk_score", 0) >= riskThresholdHigh
			},
		},
		{
			ID:              "critical_vitals",
			Type:            TypeVitalCritical,
			Category:        CategoryVitals,
			Severity:        SeverityCritical,
			MessageTemplate: "Critical vital signs detected for patient {patient_id}",
			Cooldown:        30 * time.Minute,
			Predicate: func(e Event) bool {
				sbp := e.floatField("systolic_bp", 0)
				if sbp > 180 {
					return true
				}
				// A reading of zero means the value was not recorded,
				// not a blood pressure of zero.
				if sbp > 0 && sbp < 90 {
					return true
				}
				if e.floatField("heart_rate", 0) > 120 {
					return true
				}
				return e.floatField("oxygen_saturation", 100) < 90
			},
		},
		{
			ID:              "abnormal_labs",
			Type:            TypeLabAbnormal,
			Category:        CategoryLabs,
			Severity:        SeverityMedium,
			MessageTemplate: "Abnormal lab result: {test_name} = {value} {unit} for patient {patient_id}",
			Cooldown:        60 * time.Minute,
			Predicate: func(e Event) bool {
				return e.boolField("is_abnormal")
			},
		},
	}
	return applyOverrides(rules, overrides)
}

func applyOverrides(rules []Rule, overrides map[string]RuleOverride) []Rule {
	if len(overrides) == 0 {
		return rules
	}
	result := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		override, ok := overrides[rule.ID]
		if !ok {
			result = append(result, rule)
			continue
		}
		if override.Enabled != nil && !*override.Enabled {
			continue
		}
		if override.Cooldown != nil {
			rule.Cooldown = *override.Cooldown
		}
		result = append(result, rule)
	}
	return result
}
