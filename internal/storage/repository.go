package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"clinical-alert-engine/internal/alerts"
)

const alertColumns = "id, patient_id, alert_type, severity, message, triggered_by, status, metadata, created_at, acknowledged_at, acknowledged_by, resolved_at"

// Repository is the engine's storage collaborator: alert persistence and
// lifecycle plus the lookback queries feeding the pollers.
type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

func (r *Repository) CreateAlert(ctx context.Context, draft alerts.AlertDraft) (alerts.Alert, error) {
	metadata, err := marshalMetadata(draft.Metadata)
	if err != nil {
		return alerts.Alert{}, err
	}
	row := r.Store.Pool.QueryRow(ctx, `
		INSERT INTO alerts (patient_id, alert_type, severity, message, triggered_by, status, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,'active',$6,now())
		RETURNING `+alertColumns,
		draft.SubjectID, draft.Type, draft.Severity, draft.Message, draft.TriggeredBy, metadata,
	)
	return scanAlert(row)
}

// AcknowledgeAlert moves an active alert to acknowledged. It fails with
// ErrNotFound for an unknown id and ErrInvalidTransition when the alert has
// already left the active state.
func (r *Repository) AcknowledgeAlert(ctx context.Context, id int64, by string) (alerts.Alert, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		UPDATE alerts SET status='acknowledged', acknowledged_at=now(), acknowledged_by=$2
		WHERE id=$1 AND status='active'
		RETURNING `+alertColumns, id, by)
	alert, err := scanAlert(row)
	if err == nil {
		return alert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return alerts.Alert{}, err
	}
	return alerts.Alert{}, r.transitionError(ctx, id, "acknowledge")
}

// ResolveAlert moves an alert to resolved from either active or
// acknowledged. Resolved is terminal.
func (r *Repository) ResolveAlert(ctx context.Context, id int64) (alerts.Alert, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		UPDATE alerts SET status='resolved', resolved_at=now()
		WHERE id=$1 AND status <> 'resolved'
		RETURNING `+alertColumns, id)
	alert, err := scanAlert(row)
	if err == nil {
		return alert, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return alerts.Alert{}, err
	}
	return alerts.Alert{}, r.transitionError(ctx, id, "resolve")
}

func (r *Repository) transitionError(ctx context.Context, id int64, op string) error {
	var status string
	if err := r.Store.Pool.QueryRow(ctx, `SELECT status FROM alerts WHERE id=$1`, id).Scan(&status); err != nil {
		return fmt.Errorf("%s alert %d: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("%s alert %d in status %s: %w", op, id, status, ErrInvalidTransition)
}

// ListFilter narrows ListAlerts. Zero values mean no filtering; Limit
// defaults to 100.
type ListFilter struct {
	Status    alerts.AlertStatus
	Severity  alerts.Severity
	SubjectID string
	Limit     int
	Offset    int
}

func (r *Repository) ListAlerts(ctx context.Context, filter ListFilter) ([]alerts.Alert, error) {
	query, args := buildListQuery(filter)
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []alerts.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, alert)
	}
	return results, rows.Err()
}

func buildListQuery(filter ListFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + alertColumns + " FROM alerts WHERE 1=1")
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&sb, " AND status=$%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		fmt.Fprintf(&sb, " AND severity=$%d", len(args))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		fmt.Fprintf(&sb, " AND patient_id=$%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	return sb.String(), args
}

func (r *Repository) CountActiveBySeverity(ctx context.Context) (map[alerts.Severity]int, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT severity, COUNT(*) FROM alerts WHERE status='active' GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[alerts.Severity]int{}
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[alerts.Severity(severity)] = count
	}
	return counts, rows.Err()
}

func (r *Repository) CountAlertsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.Store.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

func (r *Repository) CommonAlertTypes(ctx context.Context, since time.Time, limit int) ([]alerts.TypeCount, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT alert_type, COUNT(*) AS count FROM alerts
		WHERE created_at >= $1
		GROUP BY alert_type ORDER BY count DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []alerts.TypeCount{}
	for rows.Next() {
		var tc alerts.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		results = append(results, tc)
	}
	return results, rows.Err()
}

func (r *Repository) RecentRiskPredictions(ctx context.Context, since time.Time) ([]alerts.Event, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT patient_id, risk_type, risk_score, risk_level, created_at
		FROM risk_predictions
		WHERE created_at >= $1 AND risk_level IN ('high','critical')
		ORDER BY created_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []alerts.Event{}
	for rows.Next() {
		var rec RiskPredictionRow
		if err := rows.Scan(&rec.PatientID, &rec.RiskType, &rec.RiskScore, &rec.RiskLevel, &rec.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, rec.Event())
	}
	return events, rows.Err()
}

func (r *Repository) RecentVitalSigns(ctx context.Context, since time.Time) ([]alerts.Event, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT patient_id, systolic_bp, diastolic_bp, heart_rate, oxygen_saturation, recorded_at
		FROM vital_signs
		WHERE recorded_at >= $1
		ORDER BY recorded_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []alerts.Event{}
	for rows.Next() {
		var rec VitalSignRow
		if err := rows.Scan(&rec.PatientID, &rec.SystolicBP, &rec.DiastolicBP, &rec.HeartRate, &rec.OxygenSaturation, &rec.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, rec.Event())
	}
	return events, rows.Err()
}

func (r *Repository) RecentAbnormalLabs(ctx context.Context, since time.Time) ([]alerts.Event, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT patient_id, test_name, value, unit, is_abnormal, recorded_at
		FROM lab_results
		WHERE recorded_at >= $1 AND is_abnormal = true
		ORDER BY recorded_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []alerts.Event{}
	for rows.Next() {
		var rec LabResultRow
		if err := rows.Scan(&rec.PatientID, &rec.TestName, &rec.Value, &rec.Unit, &rec.IsAbnormal, &rec.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, rec.Event())
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alerts.Alert, error) {
	var alert alerts.Alert
	var metadata []byte
	if err := row.Scan(&alert.ID, &alert.SubjectID, &alert.Type, &alert.Severity, &alert.Message,
		&alert.TriggeredBy, &alert.Status, &metadata, &alert.CreatedAt,
		&alert.AcknowledgedAt, &alert.AcknowledgedBy, &alert.ResolvedAt); err != nil {
		return alerts.Alert{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
			return alerts.Alert{}, err
		}
	}
	return alert, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	// Timestamps and other non-JSON scalars are stringified rather than
	// rejected, so a rule firing never fails on its raw signal payload.
	safe := make(map[string]any, len(metadata))
	for key, val := range metadata {
		switch val.(type) {
		case nil, bool, string, float64, float32, int, int32, int64:
			safe[key] = val
		default:
			safe[key] = fmt.Sprint(val)
		}
	}
	return json.Marshal(safe)
}
