package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clinical-alert-engine/internal/alerts"
	"clinical-alert-engine/internal/storage"
)

// Engine is the monitoring surface the handlers call into.
type Engine interface {
	TriggerManualAlert(ctx context.Context, draft alerts.AlertDraft) bool
	Statistics(ctx context.Context) (alerts.Statistics, error)
	Running() bool
}

// AlertStore is the persistence surface the handlers call into.
type AlertStore interface {
	CreateAlert(ctx context.Context, draft alerts.AlertDraft) (alerts.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64, by string) (alerts.Alert, error)
	ResolveAlert(ctx context.Context, id int64) (alerts.Alert, error)
	ListAlerts(ctx context.Context, filter storage.ListFilter) ([]alerts.Alert, error)
	CountActiveBySeverity(ctx context.Context) (map[alerts.Severity]int, error)
}

type Handler struct {
	Engine  Engine
	Store   AlertStore
	Timeout time.Duration
}

type alertRequest struct {
	PatientID   string         `json:"patientId"`
	AlertType   string         `json:"alertType"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	TriggeredBy string         `json:"triggeredBy"`
	Metadata    map[string]any `json:"metadata"`
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
}

func (req alertRequest) validate() error {
	if req.PatientID == "" {
		return fmt.Errorf("patientId is required")
	}
	if req.AlertType == "" {
		return fmt.Errorf("alertType is required")
	}
	if !alerts.KnownSeverity(alerts.Severity(req.Severity)) {
		return fmt.Errorf("unknown severity %q", req.Severity)
	}
	if req.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func (req alertRequest) draft() alerts.AlertDraft {
	return alerts.AlertDraft{
		SubjectID:   req.PatientID,
		Type:        alerts.AlertType(req.AlertType),
		Severity:    alerts.Severity(req.Severity),
		Message:     req.Message,
		TriggeredBy: req.TriggeredBy,
		Metadata:    req.Metadata,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Post("/trigger", h.handleTrigger)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/active/count", h.handleActiveCount)
		r.Put("/{id}/acknowledge", h.handleAcknowledge)
		r.Put("/{id}/resolve", h.handleResolve)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "monitoring": h.Engine.Running()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	alert, err := h.Store.CreateAlert(ctx, req.draft())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("failed to create alert")))
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	ok := h.Engine.TriggerManualAlert(ctx, req.draft())
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("failed to trigger alert")))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{
		Status:    alerts.AlertStatus(r.URL.Query().Get("status")),
		Severity:  alerts.Severity(r.URL.Query().Get("severity")),
		SubjectID: r.URL.Query().Get("patientId"),
		Limit:     queryInt(r, "limit", 100),
		Offset:    queryInt(r, "offset", 0),
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	results, err := h.Store.ListAlerts(ctx, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("failed to list alerts")))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	var req acknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if req.AcknowledgedBy == "" {
		writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("acknowledgedBy is required")))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	alert, err := h.Store.AcknowledgeAlert(ctx, id, req.AcknowledgedBy)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	alert, err := h.Store.ResolveAlert(ctx, id)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleActiveCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	counts, err := h.Store.CountActiveBySeverity(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("failed to count alerts")))
		return
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	writeJSON(w, http.StatusOK, map[string]any{"activeAlerts": counts, "totalActive": total})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	stats, err := h.Engine.Statistics(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("failed to collect statistics")))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, storage.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errBody(err))
	default:
		writeJSON(w, http.StatusInternalServerError, errBody(fmt.Errorf("internal error")))
	}
}

func alertID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid alert id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func errBody(err error) map[string]any {
	return map[string]any{"ok": false, "message": err.Error()}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
