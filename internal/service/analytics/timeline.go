package analytics

import (
	"time"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// Timeframe selects the bucketing window for timeline and detailed-metrics
// queries.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"   // 24 buckets of 1 hour
	TimeframeWeek  Timeframe = "week"  // 7 buckets of 1 day
	TimeframeMonth Timeframe = "month" // 30 buckets of 1 day
)

// ParseTimeframe validates a timeframe token.
func ParseTimeframe(token string) (Timeframe, error) {
	switch Timeframe(token) {
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return Timeframe(token), nil
	default:
		return "", errors.NewValidationError("INVALID_TIMEFRAME", "invalid timeframe: "+token).
			WithDetails(map[string]interface{}{
				"timeframe": token,
				"valid":     []string{string(TimeframeDay), string(TimeframeWeek), string(TimeframeMonth)},
			})
	}
}

// window returns the start time, bucket interval and bucket count for a
// timeframe ending at now.
func (tf Timeframe) window(now time.Time) (start time.Time, interval time.Duration, buckets int, err error) {
	switch tf {
	case TimeframeDay:
		return now.Add(-24 * time.Hour), time.Hour, 24, nil
	case TimeframeWeek:
		return now.AddDate(0, 0, -7), 24 * time.Hour, 7, nil
	case TimeframeMonth:
		return now.AddDate(0, 0, -30), 24 * time.Hour, 30, nil
	default:
		return time.Time{}, 0, 0, errors.NewValidationError("INVALID_TIMEFRAME", "invalid timeframe: "+string(tf))
	}
}

// labels renders one chart label per bucket: clock time for the day
// timeframe, month and day otherwise.
func (tf Timeframe) labels(start time.Time, interval time.Duration, buckets int) []string {
	labels := make([]string, buckets)
	for i := 0; i < buckets; i++ {
		at := start.Add(time.Duration(i) * interval)
		if tf == TimeframeDay {
			labels[i] = at.Format("15:04")
		} else {
			labels[i] = at.Format("Jan 2")
		}
	}
	return labels
}

// bucketCounts counts events per half-open bucket [bucketStart,
// bucketStart+interval). Events exactly on a boundary belong to the later
// bucket. Only events for which match returns true are counted; a nil match
// counts everything.
func bucketCounts(events []security.Event, start time.Time, interval time.Duration, buckets int, match func(*security.Event) bool) []int {
	data := make([]int, buckets)
	end := start.Add(time.Duration(buckets) * interval)
	startMs := start.UnixMilli()
	intervalMs := interval.Milliseconds()

	for i := range events {
		e := &events[i]
		if match != nil && !match(e) {
			continue
		}
		if !e.In(start, end) {
			continue
		}
		data[(e.Timestamp-startMs)/intervalMs]++
	}
	return data
}

// bucketTimestamps counts raw epoch-millisecond timestamps per bucket, used
// for series that do not come from event records (threat detections).
func bucketTimestamps(timestamps []int64, start time.Time, interval time.Duration, buckets int) []int {
	data := make([]int, buckets)
	startMs := start.UnixMilli()
	intervalMs := interval.Milliseconds()

	for _, ts := range timestamps {
		offset := ts - startMs
		if offset < 0 {
			continue
		}
		idx := offset / intervalMs
		if idx >= int64(buckets) {
			continue
		}
		data[idx]++
	}
	return data
}

// severityDatasets produces one series per severity level, most severe
// first.
func severityDatasets(events []security.Event, start time.Time, interval time.Duration, buckets int) []security.Dataset {
	datasets := make([]security.Dataset, 0, len(security.Severities))
	for _, severity := range security.Severities {
		severity := severity
		datasets = append(datasets, security.Dataset{
			Label: string(severity),
			Data: bucketCounts(events, start, interval, buckets, func(e *security.Event) bool {
				return e.Severity == severity
			}),
		})
	}
	return datasets
}

// authenticationDatasets produces successful and failed login series.
func authenticationDatasets(events []security.Event, start time.Time, interval time.Duration, buckets int) []security.Dataset {
	return []security.Dataset{
		{
			Label: "Successful Logins",
			Data: bucketCounts(events, start, interval, buckets, func(e *security.Event) bool {
				return e.Category == security.CategoryAuth && e.Action == "LOGIN" && e.Status == security.StatusSuccess
			}),
		},
		{
			Label: "Failed Logins",
			Data: bucketCounts(events, start, interval, buckets, func(e *security.Event) bool {
				return e.Category == security.CategoryAuth && e.Action == "LOGIN" && e.Status == security.StatusFailure
			}),
		},
	}
}

// threatDatasets buckets the detector's findings by detection time. The
// series depends on the external detector, not on event records alone.
func threatDatasets(analysis *security.ThreatAnalysis, start time.Time, interval time.Duration, buckets int) []security.Dataset {
	timestamps := make([]int64, 0, len(analysis.Threats))
	for _, threat := range analysis.Threats {
		timestamps = append(timestamps, threat.DetectedAt)
	}
	return []security.Dataset{
		{
			Label: "Detected Threats",
			Data:  bucketTimestamps(timestamps, start, interval, buckets),
		},
	}
}

// totalDataset is the default single series counting all events per bucket.
func totalDataset(events []security.Event, start time.Time, interval time.Duration, buckets int) []security.Dataset {
	return []security.Dataset{
		{
			Label: "Security Events",
			Data:  bucketCounts(events, start, interval, buckets, nil),
		},
	}
}
