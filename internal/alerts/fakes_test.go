package alerts

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory Repository for evaluator and engine tests.
type fakeRepo struct {
	mu         sync.Mutex
	nextID     int64
	created    []Alert
	createErr  error
	riskEvents []Event
	riskErr    error
	vitals     []Event
	labs       []Event
}

func (f *fakeRepo) CreateAlert(ctx context.Context, draft AlertDraft) (Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Alert{}, f.createErr
	}
	f.nextID++
	alert := Alert{
		ID:          f.nextID,
		SubjectID:   draft.SubjectID,
		Type:        draft.Type,
		Severity:    draft.Severity,
		Message:     draft.Message,
		TriggeredBy: draft.TriggeredBy,
		Status:      StatusActive,
		Metadata:    draft.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	f.created = append(f.created, alert)
	return alert, nil
}

func (f *fakeRepo) createdAlerts() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert{}, f.created...)
}

func (f *fakeRepo) RecentRiskPredictions(ctx context.Context, since time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.riskEvents, f.riskErr
}

func (f *fakeRepo) RecentVitalSigns(ctx context.Context, since time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vitals, nil
}

func (f *fakeRepo) RecentAbnormalLabs(ctx context.Context, since time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labs, nil
}

func (f *fakeRepo) CountActiveBySeverity(ctx context.Context) (map[Severity]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[Severity]int{}
	for _, alert := range f.created {
		if alert.Status == StatusActive {
			counts[alert.Severity]++
		}
	}
	return counts, nil
}

func (f *fakeRepo) CountAlertsSince(ctx context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), nil
}

func (f *fakeRepo) CommonAlertTypes(ctx context.Context, since time.Time, limit int) ([]TypeCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[AlertType]int{}
	for _, alert := range f.created {
		counts[alert.Type]++
	}
	result := []TypeCount{}
	for alertType, count := range counts {
		result = append(result, TypeCount{Type: alertType, Count: count})
	}
	return result, nil
}
