package storage

import (
	"time"

	"clinical-alert-engine/internal/alerts"
)

// Signal rows mirror the tables written by the prediction, vitals and lab
// collaborators. Nullable columns stay pointers until event translation.

type RiskPredictionRow struct {
	PatientID string
	RiskType  string
	RiskScore float64
	RiskLevel string
	CreatedAt time.Time
}

type VitalSignRow struct {
	PatientID        string
	SystolicBP       *float64
	DiastolicBP      *float64
	HeartRate        *float64
	OxygenSaturation *float64
	RecordedAt       time.Time
}

type LabResultRow struct {
	PatientID  string
	TestName   string
	Value      *float64
	Unit       *string
	IsAbnormal bool
	RecordedAt time.Time
}

func (r RiskPredictionRow) Event() alerts.Event {
	return alerts.Event{
		SubjectID: r.PatientID,
		Category:  alerts.CategoryRisk,
		Fields: map[string]any{
			"risk_type":  r.RiskType,
			"risk_score": r.RiskScore,
			"risk_level": r.RiskLevel,
			"timestamp":  r.CreatedAt,
		},
	}
}

func (r VitalSignRow) Event() alerts.Event {
	fields := map[string]any{
		"systolic_bp":       floatOrZero(r.SystolicBP),
		"diastolic_bp":      floatOrZero(r.DiastolicBP),
		"heart_rate":        floatOrZero(r.HeartRate),
		"oxygen_saturation": 100.0,
		"timestamp":         r.RecordedAt,
	}
	if r.OxygenSaturation != nil {
		fields["oxygen_saturation"] = *r.OxygenSaturation
	}
	return alerts.Event{
		SubjectID: r.PatientID,
		Category:  alerts.CategoryVitals,
		Fields:    fields,
	}
}

func (r LabResultRow) Event() alerts.Event {
	return alerts.Event{
		SubjectID: r.PatientID,
		Category:  alerts.CategoryLabs,
		Fields: map[string]any{
			"test_name":   r.TestName,
			"value":       floatOrZero(r.Value),
			"unit":        stringOrEmpty(r.Unit),
			"is_abnormal": r.IsAbnormal,
			"timestamp":   r.RecordedAt,
		},
	}
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
