package security

// AuthenticationMetrics summarizes login activity over the overview window.
type AuthenticationMetrics struct {
	SuccessfulLogins int `json:"successfulLogins"`
	FailedLogins     int `json:"failedLogins"`
	MFAUsage         int `json:"mfaUsage"` // percentage, 0-100
	PasswordChanges  int `json:"passwordChanges"`
}

// ThreatMetrics summarizes the threat detector's findings for the overview.
type ThreatMetrics struct {
	TotalThreats    int               `json:"totalThreats"`
	CriticalThreats int               `json:"criticalThreats"`
	HighThreats     int               `json:"highThreats"`
	MediumThreats   int               `json:"mediumThreats"`
	LowThreats      int               `json:"lowThreats"`
	TopThreatTypes  []ThreatTypeCount `json:"topThreatTypes"`
}

// EventTrends captures event-volume movement across the standard windows.
// The change fields are signed percentages.
type EventTrends struct {
	EventsLastDay      int `json:"eventsLastDay"`
	EventsLastWeek     int `json:"eventsLastWeek"`
	EventsLastMonth    int `json:"eventsLastMonth"`
	DayOverDayChange   int `json:"dayOverDayChange"`
	WeekOverWeekChange int `json:"weekOverWeekChange"`
}

// TopEvent is one entry of the category:action event distribution.
type TopEvent struct {
	Category   string `json:"category"`
	Action     string `json:"action"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ValueCount is one entry of a field-value distribution produced by the
// aggregator's dotted-path grouping.
type ValueCount struct {
	Value      string `json:"value"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// GeoActivity is per-location event volume and outcome quality.
type GeoActivity struct {
	Location    string `json:"location"`
	EventCount  int    `json:"eventCount"`
	SuccessRate int    `json:"successRate"` // percentage, 0-100
}

// Overview is the aggregated security-posture snapshot for a time window and
// subject. It is recomputed on each cache miss and never persisted.
type Overview struct {
	TotalEvents          int `json:"totalEvents"`
	CriticalEvents       int `json:"criticalEvents"`
	HighSeverityEvents   int `json:"highSeverityEvents"`
	MediumSeverityEvents int `json:"mediumSeverityEvents"`
	LowSeverityEvents    int `json:"lowSeverityEvents"`

	AuthenticationMetrics AuthenticationMetrics `json:"authenticationMetrics"`
	ThreatMetrics         ThreatMetrics         `json:"threatMetrics"`
	Trends                EventTrends           `json:"trends"`

	TopEvents      []TopEvent    `json:"topEvents"`
	GeographicData []GeoActivity `json:"geographicData"`

	SecurityScore int   `json:"securityScore"`
	GeneratedAt   int64 `json:"generatedAt"` // epoch milliseconds
}

// Dataset is one labeled series of a timeline chart.
type Dataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// TimelineData is a bucketed series set ready for charting.
type TimelineData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// DetailedMetrics is a category-specific metric rollup.
type DetailedMetrics struct {
	Category    string                 `json:"category"`
	Metrics     map[string]interface{} `json:"metrics"`
	Timeframe   string                 `json:"timeframe"`
	GeneratedAt int64                  `json:"generatedAt"`
}

// Priority orders recommendations, critical first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the sort rank of a priority; lower sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Recommendation is an actionable security improvement derived from an
// overview. Recommendations are generated fresh on each call.
type Recommendation struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Impact         string   `json:"impact"`
	Implementation string   `json:"implementation"`
	Category       string   `json:"category"`
}
