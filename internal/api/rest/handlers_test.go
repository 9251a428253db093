package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
	"github.com/propguard/security-analytics-backend/internal/infrastructure/config"
	"github.com/propguard/security-analytics-backend/internal/service/analytics"
)

type mockAnalytics struct {
	mock.Mock
}

func (m *mockAnalytics) GetSecurityOverview(ctx context.Context, subjectID string, forceRefresh bool) (*security.Overview, error) {
	args := m.Called(ctx, subjectID, forceRefresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.Overview), args.Error(1)
}

func (m *mockAnalytics) GetTimelineData(ctx context.Context, category string, timeframe analytics.Timeframe, subjectID string) (*security.TimelineData, error) {
	args := m.Called(ctx, category, timeframe, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.TimelineData), args.Error(1)
}

func (m *mockAnalytics) GetDetailedMetrics(ctx context.Context, category string, timeframe analytics.Timeframe, subjectID string) (*security.DetailedMetrics, error) {
	args := m.Called(ctx, category, timeframe, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*security.DetailedMetrics), args.Error(1)
}

func (m *mockAnalytics) GenerateRecommendations(ctx context.Context, subjectID string) ([]security.Recommendation, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]security.Recommendation), args.Error(1)
}

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) StoreBatch(ctx context.Context, events []*security.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Server: config.ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
			RateLimit: config.RateLimitConfig{
				RequestsPerSecond: 1000,
				BurstSize:         1000,
			},
		},
	}
}

func newTestServer(t *testing.T, svc analytics.Service, events EventStore) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := NewHandler(svc, events, logger)
	return NewServer(testConfig(), handler, logger).Handler()
}

func TestHandleGetOverview(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GetSecurityOverview", mock.Anything, "user-1", true).
		Return(&security.Overview{SecurityScore: 87}, nil)

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/overview?subject=user-1&refresh=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(87), body["securityScore"])

	svc.AssertExpectations(t)
}

func TestHandleGetOverviewInternalError(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GetSecurityOverview", mock.Anything, "", false).
		Return(nil, errors.NewInternalError("failed to fetch security events"))

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/overview", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	// Internal details must not leak to clients.
	assert.Equal(t, "An internal error occurred", body.Error.Message)
}

func TestHandleGetTimelineDefaults(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GetTimelineData", mock.Anything, "all", analytics.TimeframeWeek, "").
		Return(&security.TimelineData{Labels: []string{"Jun 1"}}, nil)

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/timeline", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleGetMetricsDefaults(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GetDetailedMetrics", mock.Anything, "all", analytics.TimeframeMonth, "").
		Return(&security.DetailedMetrics{Category: "all", Timeframe: "month"}, nil)

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleGetTimelineInvalidTimeframe(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{}, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/timeline?timeframe=year", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TIMEFRAME", body.Error.Code)
	assert.Contains(t, body.Error.Message, "year")
}

func TestHandleGetMetrics(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GetDetailedMetrics", mock.Anything, "authentication", analytics.TimeframeWeek, "user-2").
		Return(&security.DetailedMetrics{Category: "authentication", Timeframe: "week"}, nil)

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/metrics?category=authentication&timeframe=week&subject=user-2", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "authentication", body["category"])

	svc.AssertExpectations(t)
}

func TestHandleGetRecommendations(t *testing.T) {
	svc := &mockAnalytics{}
	svc.On("GenerateRecommendations", mock.Anything, "").
		Return([]security.Recommendation{{ID: "enable_mfa", Priority: security.PriorityHigh}}, nil)

	srv := newTestServer(t, svc, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/security/recommendations", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Recommendations []security.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, "enable_mfa", body.Recommendations[0].ID)
}

func TestHandleIngestEvents(t *testing.T) {
	store := &mockEventStore{}
	store.On("StoreBatch", mock.Anything, mock.MatchedBy(func(events []*security.Event) bool {
		// Event IDs are opaque: a client-supplied non-UUID id is stored
		// verbatim, a missing one is filled in.
		return len(events) == 2 &&
			events[0].ID == "evt-2024-0001" &&
			events[0].Action == "LOGIN" &&
			events[0].SubjectID == "user-1" &&
			events[1].ID != ""
	})).Return(nil)

	srv := newTestServer(t, &mockAnalytics{}, store)

	payload := `{"events":[
		{"id":"evt-2024-0001","timestamp":1748779200000,"category":"AUTH","action":"LOGIN","status":"SUCCESS","severity":"INFO","subjectId":"user-1"},
		{"category":"API","action":"REQUEST","status":"SUCCESS","severity":"INFO"}
	]}`

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/security/events", bytes.NewBufferString(payload)))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["accepted"])

	store.AssertExpectations(t)
}

func TestHandleIngestEventsValidation(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"malformed json", `{"events":`, "INVALID_BODY"},
		{"empty batch", `{"events":[]}`, "EMPTY_BATCH"},
		{"unknown category", `{"events":[{"category":"NOPE","action":"X","status":"SUCCESS","severity":"INFO"}]}`, "INVALID_CATEGORY"},
		{"missing action", `{"events":[{"category":"AUTH","status":"SUCCESS","severity":"INFO"}]}`, "MISSING_ACTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockAnalytics{}, &mockEventStore{})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/security/events", bytes.NewBufferString(tt.payload)))

			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestHandleIngestEventsWithoutStore(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/security/events",
		bytes.NewBufferString(`{"events":[{"category":"AUTH","action":"LOGIN","status":"SUCCESS","severity":"INFO"}]}`)))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockAnalytics{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.BurstSize = 1

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := &mockAnalytics{}
	svc.On("GetSecurityOverview", mock.Anything, "", false).
		Return(&security.Overview{}, nil).Maybe()

	srv := NewServer(cfg, NewHandler(svc, nil, logger), logger).Handler()

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/security/overview", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/security/overview", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
}
