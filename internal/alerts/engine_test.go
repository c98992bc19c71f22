package alerts

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testSettings() Settings {
	return Settings{
		RiskInterval:      10 * time.Millisecond,
		RiskLookback:      5 * time.Minute,
		VitalsInterval:    10 * time.Millisecond,
		VitalsLookback:    10 * time.Minute,
		LabsInterval:      10 * time.Millisecond,
		LabsLookback:      30 * time.Minute,
		JanitorInterval:   10 * time.Millisecond,
		CooldownRetention: 24 * time.Hour,
		QueryTimeout:      time.Second,
		StopTimeout:       time.Second,
	}
}

func newTestEngine(repo *fakeRepo) *Engine {
	set, _ := NewRuleSet(BuiltinRules(0.8, nil))
	return NewEngine(repo, set, testSettings(), testLogger())
}

func TestEngineLifecycle(t *testing.T) {
	engine := newTestEngine(&fakeRepo{})
	if engine.Running() {
		t.Fatalf("engine must start stopped")
	}
	engine.Start()
	if !engine.Running() {
		t.Fatalf("engine must be running after Start")
	}
	// Second Start is a logged no-op.
	engine.Start()
	engine.Stop()
	if engine.Running() {
		t.Fatalf("engine must be stopped after Stop")
	}
	// Stop on a stopped engine is harmless.
	engine.Stop()
}

func TestEnginePollsAndDeduplicates(t *testing.T) {
	repo := &fakeRepo{
		riskEvents: []Event{{
			SubjectID: "P1",
			Category:  CategoryRisk,
			Fields:    map[string]any{"risk_type": "readmission", "risk_score": 0.9},
		}},
	}
	engine := newTestEngine(repo)
	engine.Start()
	defer engine.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for len(repo.createdAlerts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Several poll cycles have run by now; the overlap re-delivers the
	// same record but the cooldown keeps it to one alert.
	time.Sleep(100 * time.Millisecond)
	created := repo.createdAlerts()
	if len(created) != 1 {
		t.Fatalf("expected exactly one alert from repeated polls, got %d", len(created))
	}
	if created[0].TriggeredBy != "high_risk_readmission" {
		t.Fatalf("unexpected trigger %q", created[0].TriggeredBy)
	}
}

func TestEnginePollErrorDoesNotStopPolling(t *testing.T) {
	repo := &fakeRepo{riskErr: context.DeadlineExceeded}
	engine := newTestEngine(repo)
	engine.Start()
	time.Sleep(100 * time.Millisecond)
	engine.Stop()
	// Clearing the error lets the next cycle succeed.
	repo.mu.Lock()
	repo.riskErr = nil
	repo.riskEvents = []Event{{
		SubjectID: "P1",
		Category:  CategoryRisk,
		Fields:    map[string]any{"risk_type": "readmission", "risk_score": 0.9},
	}}
	repo.mu.Unlock()
	engine.Start()
	defer engine.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for len(repo.createdAlerts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(repo.createdAlerts()) == 0 {
		t.Fatalf("poller did not recover after storage errors")
	}
}

func TestTriggerManualAlert(t *testing.T) {
	repo := &fakeRepo{}
	engine := newTestEngine(repo)
	var mu sync.Mutex
	delivered := []Alert{}
	engine.Subscribe(func(ctx context.Context, alert Alert) error {
		mu.Lock()
		delivered = append(delivered, alert)
		mu.Unlock()
		return nil
	})

	draft := AlertDraft{
		SubjectID: "P5",
		Type:      "custom",
		Severity:  SeverityMedium,
		Message:   "check patient",
	}
	// Manual triggers bypass cooldowns entirely: both fire.
	if !engine.TriggerManualAlert(context.Background(), draft) {
		t.Fatalf("manual trigger failed")
	}
	if !engine.TriggerManualAlert(context.Background(), draft) {
		t.Fatalf("second manual trigger failed")
	}
	created := repo.createdAlerts()
	if len(created) != 2 {
		t.Fatalf("expected two persisted alerts, got %d", len(created))
	}
	if created[0].TriggeredBy != TriggeredByManual {
		t.Fatalf("expected manual trigger attribution, got %q", created[0].TriggeredBy)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 {
		t.Fatalf("expected both alerts broadcast, got %d", len(delivered))
	}
}

func TestEngineStatistics(t *testing.T) {
	repo := &fakeRepo{}
	engine := newTestEngine(repo)
	engine.Subscribe(func(ctx context.Context, alert Alert) error { return nil })
	engine.TriggerManualAlert(context.Background(), AlertDraft{
		SubjectID: "P1", Type: "custom", Severity: SeverityMedium, Message: "m",
	})

	stats, err := engine.Statistics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.RuleCount != 3 {
		t.Fatalf("expected 3 rules, got %d", stats.RuleCount)
	}
	if stats.Subscribers != 1 {
		t.Fatalf("expected 1 subscriber, got %d", stats.Subscribers)
	}
	if stats.AlertsLast24h != 1 {
		t.Fatalf("expected 1 alert in window, got %d", stats.AlertsLast24h)
	}
	if stats.ActiveBySeverity[SeverityMedium] != 1 {
		t.Fatalf("expected one active medium alert, got %+v", stats.ActiveBySeverity)
	}
}

func TestJanitorPurgesExpiredCooldowns(t *testing.T) {
	repo := &fakeRepo{}
	engine := newTestEngine(repo)
	engine.tracker.Allow("stale", "P1", time.Hour, time.Now().UTC().Add(-25*time.Hour))
	engine.Start()
	defer engine.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for engine.tracker.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if engine.tracker.Len() != 0 {
		t.Fatalf("janitor did not purge the stale entry")
	}
}
