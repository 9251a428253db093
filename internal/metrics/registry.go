package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/propguard/security-analytics-backend/internal/infrastructure/telemetry"
)

// Registry holds the engine-level metrics for the analytics backend.
type Registry struct {
	meter metric.Meter

	ComputationDuration metric.Float64Histogram
	EventsProcessed     metric.Int64Counter
	CacheHits           metric.Int64Counter
	CacheMisses         metric.Int64Counter
	Recommendations     metric.Int64Counter
	CollaboratorErrors  metric.Int64Counter
}

// NewRegistry creates all metric instruments.
func NewRegistry() (*Registry, error) {
	meter := telemetry.Meter("propguard.analytics")
	r := &Registry{meter: meter}

	var err error

	r.ComputationDuration, err = meter.Float64Histogram(
		"analytics.computation.duration",
		metric.WithDescription("Time spent computing an analytics result on cache miss"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	r.EventsProcessed, err = meter.Int64Counter(
		"analytics.events.processed",
		metric.WithDescription("Event records aggregated across all computations"),
	)
	if err != nil {
		return nil, err
	}

	r.CacheHits, err = meter.Int64Counter(
		"analytics.cache.hits",
		metric.WithDescription("Analytics results served from cache"),
	)
	if err != nil {
		return nil, err
	}

	r.CacheMisses, err = meter.Int64Counter(
		"analytics.cache.misses",
		metric.WithDescription("Analytics results recomputed after a cache miss or cache error"),
	)
	if err != nil {
		return nil, err
	}

	r.Recommendations, err = meter.Int64Counter(
		"analytics.recommendations.generated",
		metric.WithDescription("Security recommendations emitted"),
	)
	if err != nil {
		return nil, err
	}

	r.CollaboratorErrors, err = meter.Int64Counter(
		"analytics.collaborator.errors",
		metric.WithDescription("Failures from the event source or threat detector"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// RecordComputation records a completed cache-miss computation.
func (r *Registry) RecordComputation(ctx context.Context, operation string, duration time.Duration, events int) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	r.ComputationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	r.EventsProcessed.Add(ctx, int64(events), attrs)
}

// RecordCacheHit counts a result served from cache.
func (r *Registry) RecordCacheHit(ctx context.Context, operation string) {
	if r == nil {
		return
	}
	r.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordCacheMiss counts a recomputation.
func (r *Registry) RecordCacheMiss(ctx context.Context, operation string) {
	if r == nil {
		return
	}
	r.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordRecommendations counts emitted recommendations.
func (r *Registry) RecordRecommendations(ctx context.Context, count int) {
	if r == nil {
		return
	}
	r.Recommendations.Add(ctx, int64(count))
}

// RecordCollaboratorError counts a collaborator failure.
func (r *Registry) RecordCollaboratorError(ctx context.Context, collaborator string) {
	if r == nil {
		return
	}
	r.CollaboratorErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", collaborator)))
}
