package threatdetect

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// EventSource supplies the event records the detector inspects.
type EventSource interface {
	FetchEvents(ctx context.Context, start, end time.Time, subjectID string) ([]security.Event, error)
}

// Rules holds the detection thresholds.
type Rules struct {
	// BruteForceThreshold is the failed-login count per subject that flags a
	// brute force attempt; BruteForceCritical escalates it to critical.
	BruteForceThreshold int
	BruteForceCritical  int

	// RateLimitThreshold is the rate-limit hit count per subject that flags
	// API abuse.
	RateLimitThreshold int

	// AnalysisWindow is the lookback used when the caller passes no window.
	AnalysisWindow time.Duration
}

// DefaultRules returns the standard production thresholds.
func DefaultRules() Rules {
	return Rules{
		BruteForceThreshold: 5,
		BruteForceCritical:  10,
		RateLimitThreshold:  3,
		AnalysisWindow:      24 * time.Hour,
	}
}

// Threat types produced by the detector.
const (
	ThreatTypeBruteForce     = "brute_force_attempt"
	ThreatTypeRateLimitAbuse = "rate_limit_abuse"
	ThreatTypeCriticalEvent  = "critical_security_event"
)

// Risk score contribution per detected threat, capped at 100 overall.
const (
	riskPerCritical = 25.0
	riskPerHigh     = 15.0
	riskPerMedium   = 8.0
	riskPerLow      = 3.0
	maxRiskScore    = 100.0
)

// Detector is a rule-based threat detector over the security event stream.
type Detector struct {
	events EventSource
	rules  Rules
	logger *zap.Logger

	now func() time.Time
}

// NewDetector creates a detector with the given rules. Zero-valued rule
// fields fall back to the defaults.
func NewDetector(events EventSource, rules Rules, logger *zap.Logger) *Detector {
	defaults := DefaultRules()
	if rules.BruteForceThreshold <= 0 {
		rules.BruteForceThreshold = defaults.BruteForceThreshold
	}
	if rules.BruteForceCritical <= 0 {
		rules.BruteForceCritical = defaults.BruteForceCritical
	}
	if rules.RateLimitThreshold <= 0 {
		rules.RateLimitThreshold = defaults.RateLimitThreshold
	}
	if rules.AnalysisWindow <= 0 {
		rules.AnalysisWindow = defaults.AnalysisWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		events: events,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Analyze inspects the event stream for active threats. A nil window means
// the detector's default lookback ending now.
func (d *Detector) Analyze(ctx context.Context, subjectID string, window *security.Window) (*security.ThreatAnalysis, error) {
	if window == nil {
		end := d.now()
		window = &security.Window{Start: end.Add(-d.rules.AnalysisWindow), End: end}
	}

	events, err := d.events.FetchEvents(ctx, window.Start, window.End, subjectID)
	if err != nil {
		return nil, errors.NewInternalError("failed to fetch events for threat analysis").WithCause(err)
	}

	var threats []security.Threat
	threats = append(threats, d.detectBruteForce(events)...)
	threats = append(threats, d.detectRateLimitAbuse(events)...)
	threats = append(threats, d.detectCriticalEvents(events)...)

	sort.SliceStable(threats, func(i, j int) bool {
		return threats[i].Severity.Weight() > threats[j].Severity.Weight()
	})

	analysis := &security.ThreatAnalysis{
		ThreatCount: len(threats),
		ThreatTypes: make(map[string]int),
		Threats:     threats,
	}

	for _, t := range threats {
		analysis.ThreatTypes[t.Type]++
		switch t.Severity {
		case security.ThreatSeverityCritical:
			analysis.CriticalThreats++
		case security.ThreatSeverityHigh:
			analysis.HighThreats++
		case security.ThreatSeverityMedium:
			analysis.MediumThreats++
		case security.ThreatSeverityLow:
			analysis.LowThreats++
		}
	}

	analysis.RiskScore = riskScore(analysis)

	d.logger.Debug("threat analysis complete",
		zap.String("subject_id", subjectID),
		zap.Int("events", len(events)),
		zap.Int("threats", analysis.ThreatCount),
		zap.Float64("risk_score", analysis.RiskScore))

	return analysis, nil
}

// detectBruteForce flags subjects with repeated failed logins.
func (d *Detector) detectBruteForce(events []security.Event) []security.Threat {
	type tally struct {
		count  int
		latest int64
	}
	failures := make(map[string]*tally)

	for _, e := range events {
		if e.Category != security.CategoryAuth || e.Status != security.StatusFailure || e.Action != "LOGIN" {
			continue
		}
		t := failures[e.SubjectID]
		if t == nil {
			t = &tally{}
			failures[e.SubjectID] = t
		}
		t.count++
		if e.Timestamp > t.latest {
			t.latest = e.Timestamp
		}
	}

	var threats []security.Threat
	for _, subject := range sortedKeys(failures) {
		t := failures[subject]
		if t.count < d.rules.BruteForceThreshold {
			continue
		}

		severity := security.ThreatSeverityHigh
		if t.count >= d.rules.BruteForceCritical {
			severity = security.ThreatSeverityCritical
		}

		threats = append(threats, security.Threat{
			ID:          uuid.NewString(),
			Type:        ThreatTypeBruteForce,
			Severity:    severity,
			Description: fmt.Sprintf("%d failed login attempts for %s", t.count, subjectLabel(subject)),
			SubjectID:   subject,
			DetectedAt:  t.latest,
		})
	}
	return threats
}

// detectRateLimitAbuse flags subjects that keep hitting API rate limits.
func (d *Detector) detectRateLimitAbuse(events []security.Event) []security.Threat {
	type tally struct {
		count  int
		latest int64
	}
	hits := make(map[string]*tally)

	for _, e := range events {
		if e.Category != security.CategoryAPI || e.Action != "RATE_LIMIT" {
			continue
		}
		t := hits[e.SubjectID]
		if t == nil {
			t = &tally{}
			hits[e.SubjectID] = t
		}
		t.count++
		if e.Timestamp > t.latest {
			t.latest = e.Timestamp
		}
	}

	var threats []security.Threat
	for _, subject := range sortedKeys(hits) {
		t := hits[subject]
		if t.count < d.rules.RateLimitThreshold {
			continue
		}

		threats = append(threats, security.Threat{
			ID:          uuid.NewString(),
			Type:        ThreatTypeRateLimitAbuse,
			Severity:    security.ThreatSeverityMedium,
			Description: fmt.Sprintf("%d rate limit hits for %s", t.count, subjectLabel(subject)),
			SubjectID:   subject,
			DetectedAt:  t.latest,
		})
	}
	return threats
}

// detectCriticalEvents surfaces every critical event from the security
// subsystem as its own threat.
func (d *Detector) detectCriticalEvents(events []security.Event) []security.Threat {
	var threats []security.Threat
	for _, e := range events {
		if e.Category != security.CategorySecurity || e.Severity != security.SeverityCritical {
			continue
		}

		description := e.Action
		if reason, ok := e.Lookup("details.reason"); ok {
			description = fmt.Sprintf("%s: %s", e.Action, reason)
		}

		threats = append(threats, security.Threat{
			ID:          uuid.NewString(),
			Type:        ThreatTypeCriticalEvent,
			Severity:    security.ThreatSeverityCritical,
			Description: description,
			SubjectID:   e.SubjectID,
			DetectedAt:  e.Timestamp,
		})
	}
	return threats
}

func riskScore(a *security.ThreatAnalysis) float64 {
	score := float64(a.CriticalThreats)*riskPerCritical +
		float64(a.HighThreats)*riskPerHigh +
		float64(a.MediumThreats)*riskPerMedium +
		float64(a.LowThreats)*riskPerLow
	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score
}

func subjectLabel(subjectID string) string {
	if subjectID == "" {
		return "unattributed activity"
	}
	return "subject " + subjectID
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
