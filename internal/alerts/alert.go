package alerts

import (
	"context"
	"time"
)

type AlertType string

const (
	TypeRiskThreshold       AlertType = "risk_threshold"
	TypeLabAbnormal         AlertType = "lab_abnormal"
	TypeVitalCritical       AlertType = "vital_critical"
	TypeMedicationDue       AlertType = "medication_due"
	TypeAppointmentReminder AlertType = "appointment_reminder"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// KnownSeverity reports whether s is one of the four severity levels.
func KnownSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// TriggeredByManual marks alerts raised through the manual-trigger entry
// point rather than by a rule.
const TriggeredByManual = "manual"

// AlertDraft is an alert before persistence assigns identity and timestamps.
type AlertDraft struct {
	SubjectID   string         `json:"patientId"`
	Type        AlertType      `json:"alertType"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	TriggeredBy string         `json:"triggeredBy"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Alert is a persisted alert. Status moves forward only:
// active -> acknowledged -> resolved, or active -> resolved.
type Alert struct {
	ID             int64          `json:"id"`
	SubjectID      string         `json:"patientId"`
	Type           AlertType      `json:"alertType"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	TriggeredBy    string         `json:"triggeredBy"`
	Status         AlertStatus    `json:"status"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy *string        `json:"acknowledgedBy,omitempty"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
}

// AlertWriter persists new alerts.
type AlertWriter interface {
	CreateAlert(ctx context.Context, draft AlertDraft) (Alert, error)
}

// TypeCount is one entry of the most-common-alert-types statistic.
type TypeCount struct {
	Type  AlertType `json:"alertType"`
	Count int       `json:"count"`
}

// Statistics is the aggregate view exposed to the request boundary.
type Statistics struct {
	ActiveBySeverity map[Severity]int `json:"activeBySeverity"`
	AlertsLast24h    int              `json:"alertsLast24h"`
	CommonAlertTypes []TypeCount      `json:"commonAlertTypes"`
	RuleCount        int              `json:"ruleCount"`
	ActiveCooldowns  int              `json:"activeCooldowns"`
	Subscribers      int              `json:"subscribers"`
}

// Repository is the storage surface the engine depends on. The signal
// queries feed the pollers; the rest backs statistics and persistence.
type Repository interface {
	AlertWriter
	RecentRiskPredictions(ctx context.Context, since time.Time) ([]Event, error)
	RecentVitalSigns(ctx context.Context, since time.Time) ([]Event, error)
	RecentAbnormalLabs(ctx context.Context, since time.Time) ([]Event, error)
	CountActiveBySeverity(ctx context.Context) (map[Severity]int, error)
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
	CommonAlertTypes(ctx context.Context, since time.Time, limit int) ([]TypeCount, error)
}
