package alerts

import (
	"testing"
	"time"
)

func TestNewRuleSetRejectsDuplicateIDs(t *testing.T) {
	pred := func(Event) bool { return false }
	_, err := NewRuleSet([]Rule{
		{ID: "a", Severity: SeverityLow, Cooldown: time.Minute, Predicate: pred},
		{ID: "a", Severity: SeverityLow, Cooldown: time.Minute, Predicate: pred},
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewRuleSetRejectsBadRules(t *testing.T) {
	pred := func(Event) bool { return false }
	cases := []Rule{
		{ID: "", Severity: SeverityLow, Cooldown: time.Minute, Predicate: pred},
		{ID: "a", Severity: SeverityLow, Cooldown: 0, Predicate: pred},
		{ID: "a", Severity: "urgent", Cooldown: time.Minute, Predicate: pred},
		{ID: "a", Severity: SeverityLow, Cooldown: time.Minute, Predicate: nil},
	}
	for i, rule := range cases {
		if _, err := NewRuleSet([]Rule{rule}); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestBuiltinReadmissionRule(t *testing.T) {
	rules := BuiltinRules(0.8, nil)
	rule := findRule(t, rules, "high_risk_readmission")
	if rule.Cooldown != 120*time.Minute {
		t.Fatalf("expected 120m cooldown, got %v", rule.Cooldown)
	}
	match := rule.Predicate(Event{SubjectID: "P1", Category: CategoryRisk, Fields: map[string]any{
		"risk_type": "readmission", "risk_score": 0.85,
	}})
	if !match {
		t.Fatalf("score above threshold should match")
	}
	if rule.Predicate(Event{Fields: map[string]any{"risk_type": "readmission", "risk_score": 0.75}}) {
		t.Fatalf("score below threshold should not match")
	}
	if rule.Predicate(Event{Fields: map[string]any{"risk_type": "mortality", "risk_score": 0.95}}) {
		t.Fatalf("other risk types should not match")
	}
}

func TestBuiltinVitalsRule(t *testing.T) {
	rule := findRule(t, BuiltinRules(0.8, nil), "critical_vitals")
	cases := []struct {
		fields map[string]any
		match  bool
	}{
		{map[string]any{"systolic_bp": 190.0}, true},
		{map[string]any{"systolic_bp": 150.0}, false},
		{map[string]any{"systolic_bp": 85.0}, true},
		{map[string]any{"heart_rate": 130.0}, true},
		{map[string]any{"oxygen_saturation": 85.0}, true},
		{map[string]any{"heart_rate": 80.0, "oxygen_saturation": 97.0}, false},
		// Absent systolic reading must not look like hypotension.
		{map[string]any{"heart_rate": 80.0}, false},
	}
	for i, tc := range cases {
		got := rule.Predicate(Event{SubjectID: "P2", Category: CategoryVitals, Fields: tc.fields})
		if got != tc.match {
			t.Fatalf("case %d: expected match=%v for %v", i, tc.match, tc.fields)
		}
	}
}

func TestBuiltinLabsRule(t *testing.T) {
	rule := findRule(t, BuiltinRules(0.8, nil), "abnormal_labs")
	if !rule.Predicate(Event{Fields: map[string]any{"is_abnormal": true}}) {
		t.Fatalf("abnormal result should match")
	}
	if rule.Predicate(Event{Fields: map[string]any{"is_abnormal": false}}) {
		t.Fatalf("normal result should not match")
	}
}

func TestBuiltinRuleOverrides(t *testing.T) {
	disabled := false
	cooldown := 15 * time.Minute
	rules := BuiltinRules(0.8, map[string]RuleOverride{
		"abnormal_labs":   {Enabled: &disabled},
		"critical_vitals": {Cooldown: &cooldown},
	})
	if len(rules) != 2 {
		t.Fatalf("expected disabled rule dropped, got %d rules", len(rules))
	}
	if findRule(t, rules, "critical_vitals").Cooldown != cooldown {
		t.Fatalf("expected cooldown override applied")
	}
}

func TestForCategory(t *testing.T) {
	set, err := NewRuleSet(BuiltinRules(0.8, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.ForCategory(CategoryRisk)) != 1 {
		t.Fatalf("expected one risk rule")
	}
	if len(set.ForCategory(CategoryManual)) != 0 {
		t.Fatalf("expected no manual rules")
	}
	if set.Len() != 3 {
		t.Fatalf("expected 3 builtin rules, got %d", set.Len())
	}
}

func findRule(t *testing.T, rules []Rule, id string) Rule {
	t.Helper()
	for _, rule := range rules {
		if rule.ID == id {
			return rule
		}
	}
	t.Fatalf("rule %q not found", id)
	return Rule{}
}
