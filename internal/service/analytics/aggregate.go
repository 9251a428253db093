package analytics

import (
	"math"
	"sort"

	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// Aggregation primitives. These operate on event slices private to a single
// request's computation and never error: empty input yields zero counts and
// empty distributions, and every percentage divisor is guarded.

// CountEvents returns the number of events matching all provided filters.
// Zero-valued filters (empty category, action or status) match everything.
func CountEvents(events []security.Event, category security.Category, action string, status security.Status) int {
	count := 0
	for i := range events {
		e := &events[i]
		if category != "" && e.Category != category {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		count++
	}
	return count
}

// CountBySeverity returns the number of events with exactly the given
// severity.
func CountBySeverity(events []security.Event, severity security.Severity) int {
	count := 0
	for i := range events {
		if events[i].Severity == severity {
			count++
		}
	}
	return count
}

// CategoryCounts returns the event count per category.
func CategoryCounts(events []security.Event) map[security.Category]int {
	counts := make(map[security.Category]int)
	for i := range events {
		counts[events[i].Category]++
	}
	return counts
}

// TopValues groups events by the value a dotted field path resolves to and
// returns the most frequent values, sorted by count descending with ties in
// first-encountered order, truncated to limit. Events whose path does not
// resolve are excluded from the distribution, but the percentage denominator
// is the count of ALL input events, so percentages can sum below 100.
func TopValues(events []security.Event, path string, limit int) []security.ValueCount {
	total := len(events)
	counts := make(map[string]int)
	order := make([]string, 0)

	for i := range events {
		value, ok := events[i].Lookup(path)
		if !ok {
			continue
		}
		if _, seen := counts[value]; !seen {
			order = append(order, value)
		}
		counts[value]++
	}

	out := make([]security.ValueCount, 0, len(order))
	for _, value := range order {
		out = append(out, security.ValueCount{
			Value:      value,
			Count:      counts[value],
			Percentage: roundedPercentage(counts[value], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopEvents groups events by the composite category:action key and returns
// the most frequent pairs, truncated to limit.
func TopEvents(events []security.Event, limit int) []security.TopEvent {
	total := len(events)
	type pair struct {
		category security.Category
		action   string
	}
	counts := make(map[pair]int)
	order := make([]pair, 0)

	for i := range events {
		key := pair{events[i].Category, events[i].Action}
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	out := make([]security.TopEvent, 0, len(order))
	for _, key := range order {
		out = append(out, security.TopEvent{
			Category:   string(key.category),
			Action:     key.action,
			Count:      counts[key],
			Percentage: roundedPercentage(counts[key], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GeographicBreakdown groups events by details.location. Events without a
// location are excluded entirely, both from the groups and from every
// denominator. Results are ordered by event count descending.
func GeographicBreakdown(events []security.Event) []security.GeoActivity {
	type tally struct {
		total   int
		success int
	}
	counts := make(map[string]*tally)
	order := make([]string, 0)

	for i := range events {
		location, ok := events[i].Lookup("details.location")
		if !ok {
			continue
		}
		t, seen := counts[location]
		if !seen {
			t = &tally{}
			counts[location] = t
			order = append(order, location)
		}
		t.total++
		if events[i].Status == security.StatusSuccess {
			t.success++
		}
	}

	out := make([]security.GeoActivity, 0, len(order))
	for _, location := range order {
		t := counts[location]
		out = append(out, security.GeoActivity{
			Location:    location,
			EventCount:  t.total,
			SuccessRate: roundedPercentage(t.success, t.total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventCount > out[j].EventCount })
	return out
}

// FilterEvents returns the events matching all provided filters, in input
// order. Zero-valued filters match everything.
func FilterEvents(events []security.Event, category security.Category, action string, status security.Status) []security.Event {
	out := make([]security.Event, 0, len(events))
	for i := range events {
		e := &events[i]
		if category != "" && e.Category != category {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, events[i])
	}
	return out
}

func roundedPercentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func roundedRate(numerator, denominator int) int {
	if denominator < 1 {
		denominator = 1
	}
	return int(math.Round(float64(numerator) / float64(denominator) * 100))
}
