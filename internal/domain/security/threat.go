package security

import "sort"

// ThreatSeverity ranks detected threats.
type ThreatSeverity string

const (
	ThreatSeverityLow      ThreatSeverity = "low"
	ThreatSeverityMedium   ThreatSeverity = "medium"
	ThreatSeverityHigh     ThreatSeverity = "high"
	ThreatSeverityCritical ThreatSeverity = "critical"
)

// Weight returns the sort weight of a threat severity, higher is worse.
func (s ThreatSeverity) Weight() int {
	switch s {
	case ThreatSeverityCritical:
		return 4
	case ThreatSeverityHigh:
		return 3
	case ThreatSeverityMedium:
		return 2
	case ThreatSeverityLow:
		return 1
	default:
		return 0
	}
}

// Threat is a single detection produced by the threat detector.
type Threat struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Severity    ThreatSeverity `json:"severity"`
	Description string         `json:"description"`
	SubjectID   string         `json:"subjectId,omitempty"`
	DetectedAt  int64          `json:"detectedAt"` // epoch milliseconds
}

// ThreatTypeCount is one entry of a threat-type distribution. Percentage is
// relative to the total threat count.
type ThreatTypeCount struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ThreatAnalysis is the result of analyzing a window of security activity
// for active threats.
type ThreatAnalysis struct {
	ThreatCount     int            `json:"threatCount"`
	CriticalThreats int            `json:"criticalThreats"`
	HighThreats     int            `json:"highThreats"`
	MediumThreats   int            `json:"mediumThreats"`
	LowThreats      int            `json:"lowThreats"`
	ThreatTypes     map[string]int `json:"threatTypes"`
	RiskScore       float64        `json:"riskScore"` // 0-100, higher is worse
	Threats         []Threat       `json:"threats"`
}

// TopThreatTypes returns the most frequent threat types, sorted by count
// descending and truncated to limit. The percentage denominator is the
// total threat count, floored at one to avoid division by zero.
func (a *ThreatAnalysis) TopThreatTypes(limit int) []ThreatTypeCount {
	types := make([]string, 0, len(a.ThreatTypes))
	for t := range a.ThreatTypes {
		types = append(types, t)
	}
	sort.Strings(types)

	total := a.ThreatCount
	if total < 1 {
		total = 1
	}

	out := make([]ThreatTypeCount, 0, len(types))
	for _, t := range types {
		count := a.ThreatTypes[t]
		out = append(out, ThreatTypeCount{
			Type:       t,
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopThreats returns up to limit threats ordered by severity weight
// descending.
func (a *ThreatAnalysis) TopThreats(limit int) []Threat {
	threats := make([]Threat, len(a.Threats))
	copy(threats, a.Threats)
	sort.SliceStable(threats, func(i, j int) bool {
		return threats[i].Severity.Weight() > threats[j].Severity.Weight()
	})
	if limit > 0 && len(threats) > limit {
		threats = threats[:limit]
	}
	return threats
}
