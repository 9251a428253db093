package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		id            string
		category      Category
		action        string
		status        Status
		severity      Severity
		expectedError string
	}{
		{
			name:     "valid event",
			id:       "evt-1",
			category: CategoryAuth,
			action:   "LOGIN",
			status:   StatusSuccess,
			severity: SeverityInfo,
		},
		{
			name:          "missing ID",
			category:      CategoryAuth,
			action:        "LOGIN",
			status:        StatusSuccess,
			severity:      SeverityInfo,
			expectedError: "event ID is required",
		},
		{
			name:          "missing action",
			id:            "evt-2",
			category:      CategoryAuth,
			status:        StatusSuccess,
			severity:      SeverityInfo,
			expectedError: "action is required",
		},
		{
			name:          "unknown category",
			id:            "evt-3",
			category:      Category("BILLING"),
			action:        "CHARGE",
			status:        StatusSuccess,
			severity:      SeverityInfo,
			expectedError: "unknown event category",
		},
		{
			name:          "unknown status",
			id:            "evt-4",
			category:      CategoryAPI,
			action:        "GET_DATA",
			status:        Status("PARTIAL"),
			severity:      SeverityInfo,
			expectedError: "unknown event status",
		},
		{
			name:          "unknown severity",
			id:            "evt-5",
			category:      CategoryAPI,
			action:        "GET_DATA",
			status:        StatusSuccess,
			severity:      Severity("FATAL"),
			expectedError: "unknown event severity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NewEvent(tt.id, at, tt.category, tt.action, tt.status, tt.severity)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, at.UnixMilli(), event.Timestamp)
			assert.Equal(t, at.UnixMilli(), event.Time().UnixMilli())
			assert.NotNil(t, event.Details)
		})
	}
}

func TestEvent_Lookup(t *testing.T) {
	event := &Event{
		ID:        "evt-1",
		Category:  CategoryAuth,
		Action:    "LOGIN",
		Status:    StatusFailure,
		Severity:  SeverityWarning,
		SubjectID: "user-42",
		Details: Details{
			"reason":     "invalid_password",
			"deviceType": "mobile",
			"attempts":   3,
			"statusCode": float64(429),
			"latencyMs":  float64(12.5),
			"mfaUsed":    true,
			"cached":     false,
			"retries":    float64(0),
			"geo": map[string]interface{}{
				"country": "IE",
			},
		},
	}

	tests := []struct {
		path  string
		want  string
		found bool
	}{
		{"action", "LOGIN", true},
		{"category", "AUTH", true},
		{"status", "FAILURE", true},
		{"severity", "WARNING", true},
		{"subjectId", "user-42", true},
		{"details.reason", "invalid_password", true},
		{"details.deviceType", "mobile", true},
		{"details.geo.country", "IE", true},
		{"details.attempts", "3", true},
		{"details.statusCode", "429", true},
		{"details.latencyMs", "12.5", true},
		{"details.mfaUsed", "true", true},
		{"details.cached", "", false},  // false treated as absent
		{"details.retries", "", false}, // zero treated as absent
		{"details.missing", "", false},
		{"resourceType", "", false}, // unknown top-level field
		{"details", "", false},
		{"details.reason.more", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := event.Lookup(tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvent_In(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	onStart := &Event{Timestamp: start.UnixMilli()}
	onEnd := &Event{Timestamp: end.UnixMilli()}
	inside := &Event{Timestamp: start.Add(30 * time.Minute).UnixMilli()}

	assert.True(t, onStart.In(start, end), "boundary record belongs to the later bucket")
	assert.False(t, onEnd.In(start, end))
	assert.True(t, inside.In(start, end))
}
