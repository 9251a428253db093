// Package fixtures provides deterministic builders for security events and
// threats used across test suites. Builders never touch the clock or random
// sources, so two runs with the same inputs produce identical records.
package fixtures

import (
	"fmt"
	"time"

	"github.com/propguard/security-analytics-backend/internal/domain/security"
)

// BaseTime is the anchor instant fixture timestamps are derived from.
var BaseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// EventBuilder assembles a security event with sensible defaults.
type EventBuilder struct {
	event security.Event
	seq   int
}

// NewEventBuilder creates a builder for the seq-th event of a fixture set.
// The sequence number keys the ID and the default timestamp, so distinct
// sequence numbers never collide.
func NewEventBuilder(seq int) *EventBuilder {
	return &EventBuilder{
		seq: seq,
		event: security.Event{
			ID:        fmt.Sprintf("fixture-event-%04d", seq),
			Timestamp: BaseTime.Add(time.Duration(seq) * time.Second).UnixMilli(),
			Category:  security.CategoryAuth,
			Action:    "LOGIN",
			Status:    security.StatusSuccess,
			Severity:  security.SeverityInfo,
		},
	}
}

func (b *EventBuilder) At(at time.Time) *EventBuilder {
	b.event.Timestamp = at.UnixMilli()
	return b
}

func (b *EventBuilder) WithCategory(category security.Category) *EventBuilder {
	b.event.Category = category
	return b
}

func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

func (b *EventBuilder) WithStatus(status security.Status) *EventBuilder {
	b.event.Status = status
	return b
}

func (b *EventBuilder) WithSeverity(severity security.Severity) *EventBuilder {
	b.event.Severity = severity
	return b
}

func (b *EventBuilder) WithSubject(subjectID string) *EventBuilder {
	b.event.SubjectID = subjectID
	return b
}

func (b *EventBuilder) WithDetail(key string, value interface{}) *EventBuilder {
	if b.event.Details == nil {
		b.event.Details = make(security.Details)
	}
	b.event.Details[key] = value
	return b
}

func (b *EventBuilder) Build() security.Event {
	return b.event
}

// SuccessfulLogins returns count successful login events, optionally marked
// as MFA-verified.
func SuccessfulLogins(startSeq, count int, subjectID string, mfa bool) []security.Event {
	events := make([]security.Event, 0, count)
	for i := 0; i < count; i++ {
		b := NewEventBuilder(startSeq + i).
			WithSubject(subjectID).
			WithDetail("deviceType", "desktop")
		if mfa {
			b = b.WithDetail("mfaVerified", "true")
		}
		events = append(events, b.Build())
	}
	return events
}

// FailedLogins returns count failed login events sharing a failure reason.
func FailedLogins(startSeq, count int, subjectID, reason string) []security.Event {
	events := make([]security.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, NewEventBuilder(startSeq+i).
			WithStatus(security.StatusFailure).
			WithSeverity(security.SeverityWarning).
			WithSubject(subjectID).
			WithDetail("reason", reason).
			Build())
	}
	return events
}

// MFAChallenges returns count MFA verification events with the given outcome.
func MFAChallenges(startSeq, count int, subjectID string, status security.Status) []security.Event {
	severity := security.SeverityInfo
	if status == security.StatusFailure {
		severity = security.SeverityWarning
	}

	events := make([]security.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, NewEventBuilder(startSeq+i).
			WithAction("MFA_VERIFICATION").
			WithStatus(status).
			WithSeverity(severity).
			WithSubject(subjectID).
			Build())
	}
	return events
}

// ThreatBuilder assembles a detected threat with sensible defaults.
type ThreatBuilder struct {
	threat security.Threat
}

func NewThreatBuilder(seq int) *ThreatBuilder {
	return &ThreatBuilder{
		threat: security.Threat{
			ID:          fmt.Sprintf("fixture-threat-%04d", seq),
			Type:        "brute_force_attempt",
			Severity:    security.ThreatSeverityHigh,
			Description: "repeated failed login attempts",
			DetectedAt:  BaseTime.Add(time.Duration(seq) * time.Minute).UnixMilli(),
		},
	}
}

func (b *ThreatBuilder) WithType(threatType string) *ThreatBuilder {
	b.threat.Type = threatType
	return b
}

func (b *ThreatBuilder) WithSeverity(severity security.ThreatSeverity) *ThreatBuilder {
	b.threat.Severity = severity
	return b
}

func (b *ThreatBuilder) WithDescription(description string) *ThreatBuilder {
	b.threat.Description = description
	return b
}

func (b *ThreatBuilder) WithSubject(subjectID string) *ThreatBuilder {
	b.threat.SubjectID = subjectID
	return b
}

func (b *ThreatBuilder) DetectedAt(at time.Time) *ThreatBuilder {
	b.threat.DetectedAt = at.UnixMilli()
	return b
}

func (b *ThreatBuilder) Build() security.Threat {
	return b.threat
}

// Analysis assembles a ThreatAnalysis whose counters and risk score are
// consistent with the given threats.
func Analysis(threats ...security.Threat) *security.ThreatAnalysis {
	a := &security.ThreatAnalysis{
		ThreatCount: len(threats),
		ThreatTypes: make(map[string]int),
		Threats:     threats,
	}

	for _, t := range threats {
		a.ThreatTypes[t.Type]++
		switch t.Severity {
		case security.ThreatSeverityCritical:
			a.CriticalThreats++
			a.RiskScore += 25
		case security.ThreatSeverityHigh:
			a.HighThreats++
			a.RiskScore += 15
		case security.ThreatSeverityMedium:
			a.MediumThreats++
			a.RiskScore += 8
		case security.ThreatSeverityLow:
			a.LowThreats++
			a.RiskScore += 3
		}
	}
	if a.RiskScore > 100 {
		a.RiskScore = 100
	}

	return a
}
