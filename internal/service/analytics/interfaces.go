package analytics

import (
	"context"
	"time"

	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// Service is the security analytics engine. All results for the same logical
// query are memoized for ResultTTL; computation is idempotent, so concurrent
// misses for the same key recomputing in parallel is accepted.
type Service interface {
	// GetSecurityOverview computes the posture snapshot for a subject, or
	// globally when subjectID is empty. forceRefresh bypasses the cache read.
	GetSecurityOverview(ctx context.Context, subjectID string, forceRefresh bool) (*security.Overview, error)

	// GetTimelineData produces bucketed chart series for a category over the
	// given timeframe.
	GetTimelineData(ctx context.Context, category string, timeframe Timeframe, subjectID string) (*security.TimelineData, error)

	// GetDetailedMetrics produces the category-specific metric rollup.
	GetDetailedMetrics(ctx context.Context, category string, timeframe Timeframe, subjectID string) (*security.DetailedMetrics, error)

	// GenerateRecommendations derives a prioritized action list from the
	// current overview.
	GenerateRecommendations(ctx context.Context, subjectID string) ([]security.Recommendation, error)
}

// EventSource supplies event records for a half-open time window, optionally
// scoped to a subject. An empty subjectID means all subjects. Implementations
// may return an empty slice.
type EventSource interface {
	FetchEvents(ctx context.Context, start, end time.Time, subjectID string) ([]security.Event, error)
}

// ThreatDetector analyzes security activity for active threats. A nil window
// means the detector's default analysis window.
type ThreatDetector interface {
	Analyze(ctx context.Context, subjectID string, window *security.Window) (*security.ThreatAnalysis, error)
}

// ResultCache memoizes computed results. The engine treats every cache error
// as a miss; the cache is an optimization, never a correctness dependency.
type ResultCache interface {
	// Get unmarshals the cached value for key into dest. Returns an error when
	// the key is absent or expired.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ResultTTL bounds how long computed overviews, timelines and detailed
// metrics are served from cache.
const ResultTTL = 5 * time.Minute
