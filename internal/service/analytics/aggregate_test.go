package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propguard/security-analytics-backend/internal/domain/security"
	"github.com/propguard/security-analytics-backend/internal/testutil/fixtures"
)

func TestCountEvents(t *testing.T) {
	var events []security.Event
	events = append(events, fixtures.SuccessfulLogins(0, 3, "user-1", false)...)
	events = append(events, fixtures.FailedLogins(10, 2, "user-1", "invalid_password")...)
	events = append(events, fixtures.NewEventBuilder(20).
		WithCategory(security.CategoryAPI).WithAction("REQUEST").Build())

	assert.Equal(t, 6, CountEvents(events, "", "", ""), "zero-valued filters match all")
	assert.Equal(t, 5, CountEvents(events, security.CategoryAuth, "", ""))
	assert.Equal(t, 5, CountEvents(events, "", "LOGIN", ""))
	assert.Equal(t, 3, CountEvents(events, security.CategoryAuth, "LOGIN", security.StatusSuccess))
	assert.Equal(t, 2, CountEvents(events, security.CategoryAuth, "LOGIN", security.StatusFailure))
	assert.Equal(t, 0, CountEvents(events, security.CategorySecurity, "", ""))
	assert.Equal(t, 0, CountEvents(nil, "", "", ""))
}

func TestCountBySeverity(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).WithSeverity(security.SeverityCritical).Build(),
		fixtures.NewEventBuilder(1).WithSeverity(security.SeverityCritical).Build(),
		fixtures.NewEventBuilder(2).WithSeverity(security.SeverityInfo).Build(),
	}

	assert.Equal(t, 2, CountBySeverity(events, security.SeverityCritical))
	assert.Equal(t, 1, CountBySeverity(events, security.SeverityInfo))
	assert.Equal(t, 0, CountBySeverity(events, security.SeverityError))
}

func TestCategoryCounts(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).Build(),
		fixtures.NewEventBuilder(1).WithCategory(security.CategoryAPI).Build(),
		fixtures.NewEventBuilder(2).WithCategory(security.CategoryAPI).Build(),
	}

	assert.Equal(t, map[security.Category]int{
		security.CategoryAuth: 1,
		security.CategoryAPI:  2,
	}, CategoryCounts(events))
}

func TestTopValues(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).WithDetail("reason", "invalid_password").Build(),
		fixtures.NewEventBuilder(1).WithDetail("reason", "invalid_password").Build(),
		fixtures.NewEventBuilder(2).WithDetail("reason", "account_locked").Build(),
		fixtures.NewEventBuilder(3).Build(), // no reason detail
	}

	got := TopValues(events, "details.reason", 10)
	require.Len(t, got, 2)

	assert.Equal(t, "invalid_password", got[0].Value)
	assert.Equal(t, 2, got[0].Count)
	// Percentage denominator is all four input events: 2/4.
	assert.Equal(t, 50, got[0].Percentage)

	assert.Equal(t, "account_locked", got[1].Value)
	assert.Equal(t, 1, got[1].Count)
	assert.Equal(t, 25, got[1].Percentage)
}

func TestTopValuesNumericDetails(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).WithDetail("statusCode", float64(429)).Build(),
		fixtures.NewEventBuilder(1).WithDetail("statusCode", float64(429)).Build(),
		fixtures.NewEventBuilder(2).WithDetail("statusCode", float64(500)).Build(),
	}

	got := TopValues(events, "details.statusCode", 5)
	require.Len(t, got, 2)

	assert.Equal(t, "429", got[0].Value)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, 67, got[0].Percentage)

	assert.Equal(t, "500", got[1].Value)
	assert.Equal(t, 1, got[1].Count)
}

func TestTopValuesLimitAndTieOrder(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).WithDetail("deviceType", "mobile").Build(),
		fixtures.NewEventBuilder(1).WithDetail("deviceType", "desktop").Build(),
		fixtures.NewEventBuilder(2).WithDetail("deviceType", "tablet").Build(),
	}

	got := TopValues(events, "details.deviceType", 2)
	require.Len(t, got, 2)
	// All tied at one; first-encountered order wins.
	assert.Equal(t, "mobile", got[0].Value)
	assert.Equal(t, "desktop", got[1].Value)
}

func TestTopValuesEmptyInput(t *testing.T) {
	assert.Empty(t, TopValues(nil, "details.reason", 5))
}

func TestTopEvents(t *testing.T) {
	var events []security.Event
	events = append(events, fixtures.SuccessfulLogins(0, 3, "user-1", false)...)
	events = append(events, fixtures.NewEventBuilder(10).
		WithCategory(security.CategoryAPI).WithAction("REQUEST").Build())

	got := TopEvents(events, 5)
	require.Len(t, got, 2)

	assert.Equal(t, "AUTH", got[0].Category)
	assert.Equal(t, "LOGIN", got[0].Action)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, 75, got[0].Percentage)

	assert.Equal(t, "API", got[1].Category)
	assert.Equal(t, 1, got[1].Count)
	assert.Equal(t, 25, got[1].Percentage)
}

func TestGeographicBreakdown(t *testing.T) {
	events := []security.Event{
		fixtures.NewEventBuilder(0).WithDetail("location", "Berlin").Build(),
		fixtures.NewEventBuilder(1).WithDetail("location", "Berlin").
			WithStatus(security.StatusFailure).Build(),
		fixtures.NewEventBuilder(2).WithDetail("location", "Lisbon").Build(),
		fixtures.NewEventBuilder(3).Build(), // no location: excluded entirely
	}

	got := GeographicBreakdown(events)
	require.Len(t, got, 2)

	assert.Equal(t, "Berlin", got[0].Location)
	assert.Equal(t, 2, got[0].EventCount)
	assert.Equal(t, 50, got[0].SuccessRate)

	assert.Equal(t, "Lisbon", got[1].Location)
	assert.Equal(t, 1, got[1].EventCount)
	assert.Equal(t, 100, got[1].SuccessRate)
}

func TestFilterEvents(t *testing.T) {
	var events []security.Event
	events = append(events, fixtures.SuccessfulLogins(0, 2, "user-1", false)...)
	events = append(events, fixtures.FailedLogins(10, 1, "user-2", "invalid_password")...)

	failures := FilterEvents(events, security.CategoryAuth, "LOGIN", security.StatusFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "user-2", failures[0].SubjectID)

	all := FilterEvents(events, "", "", "")
	assert.Len(t, all, 3)
}

func TestRoundedPercentage(t *testing.T) {
	assert.Equal(t, 0, roundedPercentage(5, 0), "zero total never divides")
	assert.Equal(t, 0, roundedPercentage(0, 10))
	assert.Equal(t, 33, roundedPercentage(1, 3))
	assert.Equal(t, 67, roundedPercentage(2, 3))
	assert.Equal(t, 100, roundedPercentage(3, 3))
}
