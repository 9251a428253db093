package analytics

import (
	"math"

	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// ScoreInputs are the four independent health signals combined into the
// composite security score.
type ScoreInputs struct {
	// ThreatRiskScore is the detector's risk score, 0-100, higher is worse.
	ThreatRiskScore float64
	// MFAUsageRate is the MFA adoption percentage, 0-100, higher is better.
	MFAUsageRate int
	// FailedLoginRate is the fraction of login attempts that failed, 0.0-1.0.
	FailedLoginRate float64
	// Trend deltas are signed percentages; large surges in event volume
	// deduct a flat penalty from the score.
	DayOverDayChange   int
	WeekOverWeekChange int
}

// Score weights and trend-penalty thresholds. These are product-tuned
// constants preserved for compatibility with historical scores; treat them
// as tunable, not invariant.
const (
	threatWeight = 0.4
	mfaWeight    = 0.3
	loginWeight  = 0.3

	dayTrendThreshold  = 200
	weekTrendThreshold = 100
	dayTrendPenalty    = 10
	weekTrendPenalty   = 5
)

// SecurityScore combines the inputs into a single 0-100 integer. Threat
// detection carries the highest weight; the trend penalty is a flat
// deduction applied after weighting, then the result is clamped.
func SecurityScore(in ScoreInputs) int {
	threatScore := math.Max(0, 100-in.ThreatRiskScore)
	mfaScore := float64(in.MFAUsageRate)
	loginScore := math.Max(0, 100-in.FailedLoginRate*100)

	penalty := 0
	if in.DayOverDayChange > dayTrendThreshold {
		penalty += dayTrendPenalty
	}
	if in.WeekOverWeekChange > weekTrendThreshold {
		penalty += weekTrendPenalty
	}

	weighted := threatScore*threatWeight + mfaScore*mfaWeight + loginScore*loginWeight
	score := int(math.Round(weighted)) - penalty

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// PercentChange returns the rounded signed percentage change from previous
// to current. A zero previous value yields 100 when current is positive and
// 0 otherwise, so a cold start never divides by zero.
func PercentChange(current, previous int) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round(float64(current-previous) / float64(previous) * 100))
}

// MFAUsageRate is the percentage of successful logins that were accompanied
// by a successful MFA verification. Returns 0 when there were no successful
// logins.
func MFAUsageRate(events []security.Event) int {
	logins := CountEvents(events, security.CategoryAuth, "LOGIN", security.StatusSuccess)
	if logins == 0 {
		return 0
	}
	mfa := CountEvents(events, security.CategoryAuth, "MFA_VERIFICATION", security.StatusSuccess)
	return int(math.Round(float64(mfa) / float64(logins) * 100))
}
