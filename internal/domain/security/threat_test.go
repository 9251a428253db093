package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreatSeverityWeight(t *testing.T) {
	assert.Greater(t, ThreatSeverityCritical.Weight(), ThreatSeverityHigh.Weight())
	assert.Greater(t, ThreatSeverityHigh.Weight(), ThreatSeverityMedium.Weight())
	assert.Greater(t, ThreatSeverityMedium.Weight(), ThreatSeverityLow.Weight())
	assert.Equal(t, 0, ThreatSeverity("unknown").Weight())
}

func TestTopThreatTypes(t *testing.T) {
	analysis := &ThreatAnalysis{
		ThreatCount: 8,
		ThreatTypes: map[string]int{
			"brute_force_attempt":     4,
			"rate_limit_abuse":        3,
			"critical_security_event": 1,
		},
	}

	top := analysis.TopThreatTypes(2)
	require.Len(t, top, 2)

	assert.Equal(t, "brute_force_attempt", top[0].Type)
	assert.Equal(t, 4, top[0].Count)
	assert.InDelta(t, 50.0, top[0].Percentage, 0.001)

	assert.Equal(t, "rate_limit_abuse", top[1].Type)
	assert.InDelta(t, 37.5, top[1].Percentage, 0.001)
}

func TestTopThreatTypesTieOrderIsAlphabetical(t *testing.T) {
	analysis := &ThreatAnalysis{
		ThreatCount: 2,
		ThreatTypes: map[string]int{
			"zeta_scan":  1,
			"alpha_scan": 1,
		},
	}

	top := analysis.TopThreatTypes(0)
	require.Len(t, top, 2)
	assert.Equal(t, "alpha_scan", top[0].Type)
	assert.Equal(t, "zeta_scan", top[1].Type)
}

func TestTopThreatTypesEmptyAnalysis(t *testing.T) {
	analysis := &ThreatAnalysis{ThreatTypes: map[string]int{}}
	assert.Empty(t, analysis.TopThreatTypes(5))
}

func TestTopThreats(t *testing.T) {
	analysis := &ThreatAnalysis{
		Threats: []Threat{
			{ID: "t1", Severity: ThreatSeverityLow},
			{ID: "t2", Severity: ThreatSeverityCritical},
			{ID: "t3", Severity: ThreatSeverityMedium},
			{ID: "t4", Severity: ThreatSeverityHigh},
		},
	}

	top := analysis.TopThreats(3)
	require.Len(t, top, 3)
	assert.Equal(t, "t2", top[0].ID)
	assert.Equal(t, "t4", top[1].ID)
	assert.Equal(t, "t3", top[2].ID)

	// The original slice keeps its order.
	assert.Equal(t, "t1", analysis.Threats[0].ID)
}
