package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinical-alert-engine/internal/metrics"
)

// Settings control poller cadence and engine timeouts.
type Settings struct {
	RiskInterval      time.Duration
	RiskLookback      time.Duration
	VitalsInterval    time.Duration
	VitalsLookback    time.Duration
	LabsInterval      time.Duration
	LabsLookback      time.Duration
	JanitorInterval   time.Duration
	CooldownRetention time.Duration
	QueryTimeout      time.Duration
	StopTimeout       time.Duration
}

// DefaultSettings returns the production cadence. Lookback windows
// deliberately overlap their intervals so a delayed cycle cannot miss a
// record at a window boundary; the cooldown makes re-delivery idempotent.
func DefaultSettings() Settings {
	return Settings{
		RiskInterval:      60 * time.Second,
		RiskLookback:      5 * time.Minute,
		VitalsInterval:    120 * time.Second,
		VitalsLookback:    10 * time.Minute,
		LabsInterval:      300 * time.Second,
		LabsLookback:      30 * time.Minute,
		JanitorInterval:   time.Hour,
		CooldownRetention: 24 * time.Hour,
		QueryTimeout:      10 * time.Second,
		StopTimeout:       5 * time.Second,
	}
}

type fetchFunc func(ctx context.Context, since time.Time) ([]Event, error)

// Engine owns the monitoring loops: three signal pollers, the cooldown
// janitor, and the manual-trigger and statistics entry points.
type Engine struct {
	repo      Repository
	rules     *RuleSet
	tracker   *CooldownTracker
	hub       *Hub
	evaluator *Evaluator
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(repo Repository, rules *RuleSet, settings Settings, logger *slog.Logger) *Engine {
	tracker := NewCooldownTracker()
	hub := NewHub(logger)
	return &Engine{
		repo:      repo,
		rules:     rules,
		tracker:   tracker,
		hub:       hub,
		evaluator: NewEvaluator(rules, tracker, hub, repo, logger),
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the pollers and the janitor. Calling Start on a running
// engine logs a warning and does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.logger.Warn("alert engine is already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true

	e.wg.Add(4)
	go e.runPoller(ctx, "risk_predictions", e.settings.RiskInterval, e.settings.RiskLookback, e.repo.RecentRiskPredictions)
	go e.runPoller(ctx, "vital_signs", e.settings.VitalsInterval, e.settings.VitalsLookback, e.repo.RecentVitalSigns)
	go e.runPoller(ctx, "lab_results", e.settings.LabsInterval, e.settings.LabsLookback, e.repo.RecentAbnormalLabs)
	go e.runJanitor(ctx)

	e.logger.Info("alert engine started", slog.Int("rules", e.rules.Len()))
}

// Stop signals every loop to exit at its next wake-up and waits for them,
// bounded by StopTimeout. In-flight storage calls are allowed to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("alert engine stopped")
	case <-time.After(e.settings.StopTimeout):
		e.logger.Warn("alert engine stop timed out waiting for loops")
	}
}

// Running reports the lifecycle state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) runPoller(ctx context.Context, source string, interval, lookback time.Duration, fetch fetchFunc) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.pollOnce(ctx, source, lookback, fetch)
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce queries one lookback window and evaluates each row in order.
// A storage error is logged and retried on the next tick.
func (e *Engine) pollOnce(ctx context.Context, source string, lookback time.Duration, fetch fetchFunc) {
	start := time.Now()
	queryCtx, cancel := context.WithTimeout(ctx, e.settings.QueryTimeout)
	events, err := fetch(queryCtx, e.now().UTC().Add(-lookback))
	cancel()
	if err != nil {
		metrics.PollErrors.WithLabelValues(source).Inc()
		e.logger.Error("poll failed",
			slog.String("source", source),
			slog.String("error", err.Error()))
		return
	}
	for _, event := range events {
		metrics.EventsEvaluated.WithLabelValues(source).Inc()
		e.evaluator.Evaluate(ctx, event)
	}
	metrics.PollDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func (e *Engine) runJanitor(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.settings.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := e.tracker.PurgeExpired(e.now().UTC(), e.settings.CooldownRetention)
			metrics.ActiveCooldowns.Set(float64(e.tracker.Len()))
			if removed > 0 {
				e.logger.Debug("purged expired cooldowns", slog.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

// TriggerManualAlert persists and broadcasts an alert outside the rule
// pipeline, bypassing cooldowns. It reports whether the alert was created.
func (e *Engine) TriggerManualAlert(ctx context.Context, draft AlertDraft) bool {
	if draft.TriggeredBy == "" {
		draft.TriggeredBy = TriggeredByManual
	}
	alert, err := e.repo.CreateAlert(ctx, draft)
	if err != nil {
		e.logger.Error("failed to trigger manual alert",
			slog.String("patient", draft.SubjectID),
			slog.String("error", err.Error()))
		return false
	}
	metrics.AlertsCreated.WithLabelValues(string(alert.Severity), alert.TriggeredBy).Inc()
	e.logger.Info("manual alert triggered",
		slog.Int64("id", alert.ID),
		slog.String("patient", alert.SubjectID))
	e.hub.Publish(ctx, alert)
	return true
}

func (e *Engine) Subscribe(fn SubscriberFunc) uuid.UUID {
	return e.hub.Subscribe(fn)
}

func (e *Engine) Unsubscribe(handle uuid.UUID) {
	e.hub.Unsubscribe(handle)
}

// Statistics aggregates alert counts from storage with the engine's own
// in-memory state.
func (e *Engine) Statistics(ctx context.Context) (Statistics, error) {
	bySeverity, err := e.repo.CountActiveBySeverity(ctx)
	if err != nil {
		return Statistics{}, err
	}
	last24h, err := e.repo.CountAlertsSince(ctx, e.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return Statistics{}, err
	}
	common, err := e.repo.CommonAlertTypes(ctx, e.now().UTC().AddDate(0, 0, -7), 5)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		ActiveBySeverity: bySeverity,
		AlertsLast24h:    last24h,
		CommonAlertTypes: common,
		RuleCount:        e.rules.Len(),
		ActiveCooldowns:  e.tracker.Len(),
		Subscribers:      e.hub.Len(),
	}, nil
}
