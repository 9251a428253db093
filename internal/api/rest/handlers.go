package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
	"github.com/propguard/security-analytics-backend/internal/service/analytics"
)

// EventStore accepts ingested security events.
type EventStore interface {
	StoreBatch(ctx context.Context, events []*security.Event) error
}

// Handler serves the analytics API.
type Handler struct {
	analytics analytics.Service
	events    EventStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates the API handler. events may be nil when ingest is
// handled out of band; the ingest endpoint then returns 503.
func NewHandler(svc analytics.Service, events EventStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analytics: svc,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// handleGetOverview serves GET /api/v1/security/overview.
func (h *Handler) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject")
	forceRefresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	overview, err := h.analytics.GetSecurityOverview(r.Context(), subjectID, forceRefresh)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, overview)
}

// handleGetTimeline serves GET /api/v1/security/timeline.
func (h *Handler) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	timeframe, err := analytics.ParseTimeframe(timeframeParam(r, analytics.TimeframeWeek))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		category = "all"
	}
	subjectID := r.URL.Query().Get("subject")

	timeline, err := h.analytics.GetTimelineData(r.Context(), category, timeframe, subjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, timeline)
}

// handleGetMetrics serves GET /api/v1/security/metrics.
func (h *Handler) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	timeframe, err := analytics.ParseTimeframe(timeframeParam(r, analytics.TimeframeMonth))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		category = "all"
	}
	subjectID := r.URL.Query().Get("subject")

	metrics, err := h.analytics.GetDetailedMetrics(r.Context(), category, timeframe, subjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, metrics)
}

// handleGetRecommendations serves GET /api/v1/security/recommendations.
func (h *Handler) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject")

	recommendations, err := h.analytics.GenerateRecommendations(r.Context(), subjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recommendations,
	})
}

// eventPayload is the wire form of an ingested event.
type eventPayload struct {
	ID        string            `json:"id"`
	Timestamp int64             `json:"timestamp"`
	Category  security.Category `json:"category"`
	Action    string            `json:"action"`
	Status    security.Status   `json:"status"`
	Severity  security.Severity `json:"severity"`
	SubjectID string            `json:"subjectId"`
	Details   security.Details  `json:"details"`
}

type ingestRequest struct {
	Events []eventPayload `json:"events"`
}

// handleIngestEvents serves POST /api/v1/security/events. The batch is
// stored atomically; one bad record rejects the whole request.
func (h *Handler) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeError(w, r, &errors.AppError{
			Type:       errors.ErrorTypeInternal,
			Code:       "INGEST_DISABLED",
			Message:    "event ingest is not available",
			StatusCode: http.StatusServiceUnavailable,
		})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
		return
	}
	if len(req.Events) == 0 {
		h.writeError(w, r, errors.NewValidationError("EMPTY_BATCH", "at least one event is required"))
		return
	}

	events := make([]*security.Event, 0, len(req.Events))
	for _, p := range req.Events {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		at := h.now()
		if p.Timestamp > 0 {
			at = time.UnixMilli(p.Timestamp)
		}

		event, err := security.NewEvent(id, at, p.Category, p.Action, p.Status, p.Severity)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		event.SubjectID = p.SubjectID
		if p.Details != nil {
			event.Details = p.Details
		}
		events = append(events, event)
	}

	if err := h.events.StoreBatch(r.Context(), events); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": len(events),
	})
}

// timeframeParam reads the timeframe query parameter, falling back to the
// endpoint's default window.
func timeframeParam(r *http.Request, fallback analytics.Timeframe) string {
	if tf := r.URL.Query().Get("timeframe"); tf != "" {
		return tf
	}
	return string(fallback)
}

// handleHealth serves GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusCode(err)
	code := "INTERNAL_ERROR"
	message := "An internal error occurred"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = appErr.Code
		// Internal failure details stay in the logs.
		if !errors.IsType(err, errors.ErrorTypeInternal) {
			message = appErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err.Error(),
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
		)
	}

	h.writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
