package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
	"github.com/propguard/security-analytics-backend/internal/metrics"
)

// service implements the Service interface
type service struct {
	events  EventSource
	threats ThreatDetector
	cache   ResultCache
	metrics *metrics.Registry
	logger  *zap.Logger

	// now is swapped in tests to pin the analysis windows.
	now func() time.Time
}

// NewService creates the analytics engine. cache and registry may be nil;
// the engine then always computes directly and records nothing.
func NewService(events EventSource, threats ThreatDetector, cache ResultCache, registry *metrics.Registry, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		events:  events,
		threats: threats,
		cache:   cache,
		metrics: registry,
		logger:  logger,
		now:     time.Now,
	}
}

// GetSecurityOverview computes the posture snapshot for a subject.
func (s *service) GetSecurityOverview(ctx context.Context, subjectID string, forceRefresh bool) (*security.Overview, error) {
	key := fmt.Sprintf("security_overview:%s", subjectOrGlobal(subjectID))

	if !forceRefresh {
		var cached security.Overview
		if s.cacheGet(ctx, key, &cached) {
			s.metrics.RecordCacheHit(ctx, "overview")
			return &cached, nil
		}
	}
	s.metrics.RecordCacheMiss(ctx, "overview")

	started := time.Now()
	now := s.now()
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	monthEvents, err := s.fetchEvents(ctx, monthAgo, now, subjectID)
	if err != nil {
		return nil, err
	}
	weekEvents, err := s.fetchEvents(ctx, weekAgo, now, subjectID)
	if err != nil {
		return nil, err
	}
	dayEvents, err := s.fetchEvents(ctx, dayAgo, now, subjectID)
	if err != nil {
		return nil, err
	}
	prevDayEvents, err := s.fetchEvents(ctx, dayAgo.Add(-24*time.Hour), dayAgo, subjectID)
	if err != nil {
		return nil, err
	}
	prevWeekEvents, err := s.fetchEvents(ctx, weekAgo.AddDate(0, 0, -7), weekAgo, subjectID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.analyzeThreats(ctx, subjectID, nil)
	if err != nil {
		return nil, err
	}

	auth := security.AuthenticationMetrics{
		SuccessfulLogins: CountEvents(monthEvents, security.CategoryAuth, "LOGIN", security.StatusSuccess),
		FailedLogins:     CountEvents(monthEvents, security.CategoryAuth, "LOGIN", security.StatusFailure),
		MFAUsage:         MFAUsageRate(monthEvents),
		PasswordChanges:  CountEvents(monthEvents, security.CategoryAuth, "PASSWORD_CHANGE", security.StatusSuccess),
	}

	loginAttempts := auth.SuccessfulLogins + auth.FailedLogins
	if loginAttempts < 1 {
		loginAttempts = 1
	}

	trends := security.EventTrends{
		EventsLastDay:      len(dayEvents),
		EventsLastWeek:     len(weekEvents),
		EventsLastMonth:    len(monthEvents),
		DayOverDayChange:   PercentChange(len(dayEvents), len(prevDayEvents)),
		WeekOverWeekChange: PercentChange(len(weekEvents), len(prevWeekEvents)),
	}

	overview := &security.Overview{
		TotalEvents:          len(monthEvents),
		CriticalEvents:       CountBySeverity(monthEvents, security.SeverityCritical),
		HighSeverityEvents:   CountBySeverity(monthEvents, security.SeverityError),
		MediumSeverityEvents: CountBySeverity(monthEvents, security.SeverityWarning),
		LowSeverityEvents:    CountBySeverity(monthEvents, security.SeverityInfo),

		AuthenticationMetrics: auth,
		ThreatMetrics: security.ThreatMetrics{
			TotalThreats:    analysis.ThreatCount,
			CriticalThreats: analysis.CriticalThreats,
			HighThreats:     analysis.HighThreats,
			MediumThreats:   analysis.MediumThreats,
			LowThreats:      analysis.LowThreats,
			TopThreatTypes:  analysis.TopThreatTypes(5),
		},
		Trends: trends,

		TopEvents:      TopEvents(monthEvents, 10),
		GeographicData: GeographicBreakdown(monthEvents),

		SecurityScore: SecurityScore(ScoreInputs{
			ThreatRiskScore:    analysis.RiskScore,
			MFAUsageRate:       auth.MFAUsage,
			FailedLoginRate:    float64(auth.FailedLogins) / float64(loginAttempts),
			DayOverDayChange:   trends.DayOverDayChange,
			WeekOverWeekChange: trends.WeekOverWeekChange,
		}),
		GeneratedAt: now.UnixMilli(),
	}

	s.cacheSet(ctx, key, overview)
	s.metrics.RecordComputation(ctx, "overview", time.Since(started), len(monthEvents))

	return overview, nil
}

// GetTimelineData produces bucketed chart series for a category.
func (s *service) GetTimelineData(ctx context.Context, category string, timeframe Timeframe, subjectID string) (*security.TimelineData, error) {
	now := s.now()
	start, interval, buckets, err := timeframe.window(now)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("timeline:%s:%s:%s", category, timeframe, subjectOrGlobal(subjectID))
	var cached security.TimelineData
	if s.cacheGet(ctx, key, &cached) {
		s.metrics.RecordCacheHit(ctx, "timeline")
		return &cached, nil
	}
	s.metrics.RecordCacheMiss(ctx, "timeline")

	started := time.Now()
	events, err := s.fetchEvents(ctx, start, now, subjectID)
	if err != nil {
		return nil, err
	}

	var datasets []security.Dataset
	switch category {
	case "severity":
		datasets = severityDatasets(events, start, interval, buckets)
	case "authentication":
		datasets = authenticationDatasets(events, start, interval, buckets)
	case "threats":
		analysis, err := s.analyzeThreats(ctx, subjectID, &security.Window{Start: start, End: now})
		if err != nil {
			return nil, err
		}
		datasets = threatDatasets(analysis, start, interval, buckets)
	default:
		datasets = totalDataset(events, start, interval, buckets)
	}

	result := &security.TimelineData{
		Labels:   timeframe.labels(start, interval, buckets),
		Datasets: datasets,
	}

	s.cacheSet(ctx, key, result)
	s.metrics.RecordComputation(ctx, "timeline", time.Since(started), len(events))

	return result, nil
}

// GetDetailedMetrics produces the category-specific metric rollup.
func (s *service) GetDetailedMetrics(ctx context.Context, category string, timeframe Timeframe, subjectID string) (*security.DetailedMetrics, error) {
	now := s.now()
	start, _, _, err := timeframe.window(now)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("detailed_metrics:%s:%s:%s", category, timeframe, subjectOrGlobal(subjectID))
	var cached security.DetailedMetrics
	if s.cacheGet(ctx, key, &cached) {
		s.metrics.RecordCacheHit(ctx, "detailed_metrics")
		return &cached, nil
	}
	s.metrics.RecordCacheMiss(ctx, "detailed_metrics")

	started := time.Now()
	events, err := s.fetchEvents(ctx, start, now, subjectID)
	if err != nil {
		return nil, err
	}

	var rollup map[string]interface{}
	switch category {
	case "authentication":
		rollup = authenticationRollup(events)
	case "threats":
		analysis, err := s.analyzeThreats(ctx, subjectID, &security.Window{Start: start, End: now})
		if err != nil {
			return nil, err
		}
		rollup = threatRollup(analysis)
	case "access_control":
		rollup = accessControlRollup(events)
	case "api":
		rollup = apiRollup(events)
	default:
		rollup = defaultRollup(events)
	}

	result := &security.DetailedMetrics{
		Category:    category,
		Metrics:     rollup,
		Timeframe:   string(timeframe),
		GeneratedAt: now.UnixMilli(),
	}

	s.cacheSet(ctx, key, result)
	s.metrics.RecordComputation(ctx, "detailed_metrics", time.Since(started), len(events))

	return result, nil
}

// GenerateRecommendations derives a prioritized action list from the current
// overview. Rules are evaluated independently; every applicable rule fires.
func (s *service) GenerateRecommendations(ctx context.Context, subjectID string) ([]security.Recommendation, error) {
	overview, err := s.GetSecurityOverview(ctx, subjectID, false)
	if err != nil {
		return nil, err
	}

	recommendations := make([]security.Recommendation, 0, 3)

	if overview.AuthenticationMetrics.MFAUsage < 50 {
		recommendations = append(recommendations, security.Recommendation{
			ID:             "enable_mfa",
			Title:          "Enable Multi-Factor Authentication",
			Description:    "MFA usage is below recommended levels. Enabling MFA for all users will significantly improve security.",
			Priority:       security.PriorityHigh,
			Impact:         "Reduces account compromise risk by 99%",
			Implementation: "Implement MFA requirement for all users through the Security Dashboard.",
			Category:       "authentication",
		})
	}

	if overview.AuthenticationMetrics.FailedLogins > 10 {
		recommendations = append(recommendations, security.Recommendation{
			ID:             "address_failed_logins",
			Title:          "Address Failed Login Attempts",
			Description:    fmt.Sprintf("There have been %d failed login attempts in the past 30 days.", overview.AuthenticationMetrics.FailedLogins),
			Priority:       security.PriorityMedium,
			Impact:         "Reduces risk of brute force attacks",
			Implementation: "Review failed login patterns and implement additional protections like CAPTCHA or temporary lockouts.",
			Category:       "authentication",
		})
	}

	if overview.ThreatMetrics.CriticalThreats > 0 || overview.ThreatMetrics.HighThreats > 0 {
		recommendations = append(recommendations, security.Recommendation{
			ID:             "address_security_threats",
			Title:          "Address Critical Security Threats",
			Description:    fmt.Sprintf("There are %d critical and %d high severity threats detected.", overview.ThreatMetrics.CriticalThreats, overview.ThreatMetrics.HighThreats),
			Priority:       security.PriorityCritical,
			Impact:         "Prevents potential security breaches",
			Implementation: "Review the Security Monitoring Dashboard and address each threat immediately.",
			Category:       "threats",
		})
	}

	// Stable: equal priorities keep rule-evaluation order.
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority.Rank() < recommendations[j].Priority.Rank()
	})

	s.metrics.RecordRecommendations(ctx, len(recommendations))

	return recommendations, nil
}

// Rollup builders

func authenticationRollup(events []security.Event) map[string]interface{} {
	totalLogins := CountEvents(events, security.CategoryAuth, "LOGIN", "")
	successfulLogins := CountEvents(events, security.CategoryAuth, "LOGIN", security.StatusSuccess)
	mfaVerifications := CountEvents(events, security.CategoryAuth, "MFA_VERIFICATION", "")
	mfaSuccesses := CountEvents(events, security.CategoryAuth, "MFA_VERIFICATION", security.StatusSuccess)
	failedLogins := FilterEvents(events, security.CategoryAuth, "LOGIN", security.StatusFailure)

	return map[string]interface{}{
		"totalLogins":       totalLogins,
		"successfulLogins":  successfulLogins,
		"failedLogins":      len(failedLogins),
		"successRate":       roundedRate(successfulLogins, totalLogins),
		"mfaVerifications":  mfaVerifications,
		"mfaSuccessRate":    roundedRate(mfaSuccesses, mfaVerifications),
		"passwordChanges":   CountEvents(events, security.CategoryAuth, "PASSWORD_CHANGE", ""),
		"accountLockouts":   CountEvents(events, security.CategoryAuth, "ACCOUNT_LOCKED", ""),
		"topFailureReasons": TopValues(failedLogins, "details.reason", 5),
		"deviceTypes":       TopValues(FilterEvents(events, security.CategoryAuth, "", ""), "details.deviceType", 5),
	}
}

// threatSummary trims a threat to the fields the dashboard renders.
type threatSummary struct {
	ID          string                  `json:"id"`
	Type        string                  `json:"type"`
	Severity    security.ThreatSeverity `json:"severity"`
	Description string                  `json:"description"`
}

func threatRollup(analysis *security.ThreatAnalysis) map[string]interface{} {
	top := analysis.TopThreats(5)
	summaries := make([]threatSummary, 0, len(top))
	for _, t := range top {
		summaries = append(summaries, threatSummary{
			ID:          t.ID,
			Type:        t.Type,
			Severity:    t.Severity,
			Description: t.Description,
		})
	}

	return map[string]interface{}{
		"totalThreats":  analysis.ThreatCount,
		"threatsByType": analysis.TopThreatTypes(0),
		"threatsBySeverity": map[string]int{
			"critical": analysis.CriticalThreats,
			"high":     analysis.HighThreats,
			"medium":   analysis.MediumThreats,
			"low":      analysis.LowThreats,
		},
		"riskScore":   analysis.RiskScore,
		"top5Threats": summaries,
	}
}

func accessControlRollup(events []security.Event) map[string]interface{} {
	total := CountEvents(events, security.CategoryAuthorization, "", "")
	denied := FilterEvents(events, security.CategoryAuthorization, "", security.StatusFailure)

	return map[string]interface{}{
		"totalAccessEvents":    total,
		"accessDenied":         len(denied),
		"accessGranted":        CountEvents(events, security.CategoryAuthorization, "", security.StatusSuccess),
		"denyRate":             roundedRate(len(denied), total),
		"topDeniedResources":   TopValues(denied, "details.resourceType", 5),
		"topDeniedPermissions": TopValues(denied, "details.permission", 5),
	}
}

func apiRollup(events []security.Event) map[string]interface{} {
	apiEvents := FilterEvents(events, security.CategoryAPI, "", "")
	failures := FilterEvents(events, security.CategoryAPI, "", security.StatusFailure)

	return map[string]interface{}{
		"totalApiCalls":       len(apiEvents),
		"failedApiCalls":      len(failures),
		"successfulApiCalls":  CountEvents(events, security.CategoryAPI, "", security.StatusSuccess),
		"topEndpoints":        TopValues(apiEvents, "details.endpoint", 10),
		"topFailureEndpoints": TopValues(failures, "details.endpoint", 5),
		"rateLimitEvents":     CountEvents(events, security.CategoryAPI, "RATE_LIMIT", ""),
	}
}

func defaultRollup(events []security.Event) map[string]interface{} {
	categoryCounts := make(map[string]int)
	for category, count := range CategoryCounts(events) {
		categoryCounts[string(category)] = count
	}

	return map[string]interface{}{
		"totalEvents": len(events),
		"eventsBySeverity": map[string]int{
			"critical": CountBySeverity(events, security.SeverityCritical),
			"error":    CountBySeverity(events, security.SeverityError),
			"warning":  CountBySeverity(events, security.SeverityWarning),
			"info":     CountBySeverity(events, security.SeverityInfo),
		},
		"eventsByCategory": categoryCounts,
		"topActions":       TopValues(events, "action", 10),
	}
}

// Collaborator and cache helpers

func (s *service) fetchEvents(ctx context.Context, start, end time.Time, subjectID string) ([]security.Event, error) {
	events, err := s.events.FetchEvents(ctx, start, end, subjectID)
	if err != nil {
		s.logger.Error("event source failed",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.String("subject_id", subjectID),
			zap.Error(err))
		s.metrics.RecordCollaboratorError(ctx, "event_source")
		return nil, errors.NewInternalError("failed to fetch security events").
			WithCause(errors.NewExternalError("event_source", err.Error()).WithCause(err))
	}
	return events, nil
}

func (s *service) analyzeThreats(ctx context.Context, subjectID string, window *security.Window) (*security.ThreatAnalysis, error) {
	analysis, err := s.threats.Analyze(ctx, subjectID, window)
	if err != nil {
		s.logger.Error("threat detector failed",
			zap.String("subject_id", subjectID),
			zap.Error(err))
		s.metrics.RecordCollaboratorError(ctx, "threat_detector")
		return nil, errors.NewInternalError("threat analysis failed").
			WithCause(errors.NewExternalError("threat_detector", err.Error()).WithCause(err))
	}
	return analysis, nil
}

// cacheGet reports whether dest was populated from cache. Any cache error is
// treated as a miss; the engine falls back to direct computation.
func (s *service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

// cacheSet stores a computed result, absorbing any cache error.
func (s *service) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ResultTTL); err != nil {
		s.logger.Warn("failed to cache analytics result",
			zap.String("key", key),
			zap.Error(err))
	}
}

func subjectOrGlobal(subjectID string) string {
	if subjectID == "" {
		return "global"
	}
	return subjectID
}
