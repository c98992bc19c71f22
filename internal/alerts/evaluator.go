package alerts

import (
	"context"
	"log/slog"
	"time"

	"clinical-alert-engine/internal/metrics"
)

// RuleMatch records the outcome of evaluating one rule against one event.
type RuleMatch struct {
	Rule    Rule
	Matched bool
	Fired   bool
}

// Evaluator matches events against the rule set, consults the cooldown
// tracker and, when a rule fires, persists and broadcasts the alert.
type Evaluator struct {
	rules   *RuleSet
	tracker *CooldownTracker
	hub     *Hub
	store   AlertWriter
	logger  *slog.Logger
	now     func() time.Time
}

func NewEvaluator(rules *RuleSet, tracker *CooldownTracker, hub *Hub, store AlertWriter, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		rules:   rules,
		tracker: tracker,
		hub:     hub,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Evaluate runs every rule of the event's category. One rule's panic or
// storage failure never stops the remaining rules.
func (ev *Evaluator) Evaluate(ctx context.Context, event Event) []RuleMatch {
	if event.SubjectID == "" {
		return nil
	}
	rules := ev.rules.ForCategory(event.Category)
	results := make([]RuleMatch, 0, len(rules))
	for _, rule := range rules {
		matched := ev.safeMatch(rule, event)
		result := RuleMatch{Rule: rule, Matched: matched}
		if matched {
			if ev.tracker.Allow(rule.ID, event.SubjectID, rule.Cooldown, ev.now().UTC()) {
				ev.fire(ctx, rule, event)
				result.Fired = true
			} else {
				metrics.CooldownSuppressed.WithLabelValues(rule.ID).Inc()
			}
		}
		results = append(results, result)
	}
	return results
}

func (ev *Evaluator) safeMatch(rule Rule, event Event) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			metrics.PredicatePanics.WithLabelValues(rule.ID).Inc()
			ev.logger.Error("rule predicate panicked",
				slog.String("rule", rule.ID),
				slog.String("patient", event.SubjectID),
				slog.Any("panic", r))
		}
	}()
	return rule.Predicate(event)
}

func (ev *Evaluator) fire(ctx context.Context, rule Rule, event Event) {
	message, err := RenderTemplate(rule.MessageTemplate, event)
	if err != nil {
		metrics.RenderFailures.Inc()
		ev.logger.Warn("message template render failed",
			slog.String("rule", rule.ID),
			slog.String("error", err.Error()))
		message = rule.MessageTemplate
	}
	alert, err := ev.store.CreateAlert(ctx, AlertDraft{
		SubjectID:   event.SubjectID,
		Type:        rule.Type,
		Severity:    rule.Severity,
		Message:     message,
		TriggeredBy: rule.ID,
		Metadata:    event.Fields,
	})
	if err != nil {
		metrics.AlertCreateFailures.Inc()
		ev.logger.Error("failed to create alert",
			slog.String("rule", rule.ID),
			slog.String("patient", event.SubjectID),
			slog.String("error", err.Error()))
		return
	}
	metrics.AlertsCreated.WithLabelValues(string(rule.Severity), rule.ID).Inc()
	ev.logger.Info("alert created",
		slog.Int64("id", alert.ID),
		slog.String("rule", rule.ID),
		slog.String("patient", event.SubjectID))
	ev.hub.Publish(ctx, alert)
}
