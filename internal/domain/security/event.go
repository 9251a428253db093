package security

import (
	"strconv"
	"strings"
	"time"

	"github.com/propguard/security-analytics-backend/internal/domain/errors"
)

// Category identifies the subsystem an event originated from.
type Category string

const (
	CategoryAuth          Category = "AUTH"
	CategoryAuthorization Category = "AUTHORIZATION"
	CategoryAPI           Category = "API"
	CategoryDataAccess    Category = "DATA_ACCESS"
	CategorySecurity      Category = "SECURITY"
)

// Status is the outcome of the recorded operation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Severity is the qualitative importance of an event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists all severity levels from most to least severe. Timeline
// datasets are emitted in this order.
var Severities = []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo}

// Details carries open-ended event context (ip address, device type,
// location, failure reason) keyed by string.
type Details map[string]interface{}

// Event is a single timestamped security-relevant occurrence. Events are
// immutable once produced; the analytics engine only reads them.
type Event struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	Category  Category `json:"category"`
	Action    string   `json:"action"`
	Status    Status   `json:"status"`
	Severity  Severity `json:"severity"`
	SubjectID string   `json:"subjectId,omitempty"`
	Details   Details  `json:"details,omitempty"`
}

// NewEvent creates a validated event record.
func NewEvent(id string, at time.Time, category Category, action string, status Status, severity Severity) (*Event, error) {
	if id == "" {
		return nil, errors.NewValidationError("MISSING_EVENT_ID", "event ID is required")
	}
	if action == "" {
		return nil, errors.NewValidationError("MISSING_ACTION", "action is required")
	}
	if !category.Valid() {
		return nil, errors.NewValidationError("INVALID_CATEGORY", "unknown event category: "+string(category))
	}
	if !status.Valid() {
		return nil, errors.NewValidationError("INVALID_STATUS", "unknown event status: "+string(status))
	}
	if !severity.Valid() {
		return nil, errors.NewValidationError("INVALID_SEVERITY", "unknown event severity: "+string(severity))
	}

	return &Event{
		ID:        id,
		Timestamp: at.UnixMilli(),
		Category:  category,
		Action:    action,
		Status:    status,
		Severity:  severity,
		Details:   make(Details),
	}, nil
}

// Time returns the event timestamp as a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// In reports whether the event falls inside the half-open window
// [start, end). A record exactly on a boundary belongs to the later bucket.
func (e *Event) In(start, end time.Time) bool {
	return e.Timestamp >= start.UnixMilli() && e.Timestamp < end.UnixMilli()
}

// Lookup resolves a dotted field path against the event, e.g. "action",
// "details.reason" or "details.deviceType". It returns the value rendered as
// a string and false when the path does not resolve to a non-empty scalar.
func (e *Event) Lookup(path string) (string, bool) {
	head, rest, nested := strings.Cut(path, ".")

	if !nested {
		switch head {
		case "id":
			return nonEmpty(e.ID)
		case "category":
			return nonEmpty(string(e.Category))
		case "action":
			return nonEmpty(e.Action)
		case "status":
			return nonEmpty(string(e.Status))
		case "severity":
			return nonEmpty(string(e.Severity))
		case "subjectId":
			return nonEmpty(e.SubjectID)
		default:
			return "", false
		}
	}

	if head != "details" || e.Details == nil {
		return "", false
	}
	return lookupDetails(e.Details, rest)
}

func lookupDetails(d Details, path string) (string, bool) {
	head, rest, nested := strings.Cut(path, ".")
	value, ok := d[head]
	if !ok || value == nil {
		return "", false
	}

	if nested {
		child, ok := value.(map[string]interface{})
		if !ok {
			return "", false
		}
		return lookupDetails(Details(child), rest)
	}

	return renderScalar(value)
}

// renderScalar renders a leaf detail value as a string. Empty strings, false
// and zero numbers are treated as absent, so only populated details
// contribute to distributions. JSON numbers arrive as float64.
func renderScalar(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return nonEmpty(v)
	case bool:
		if !v {
			return "", false
		}
		return "true", true
	case float64:
		if v == 0 {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		if v == 0 {
			return "", false
		}
		return strconv.Itoa(v), true
	case int64:
		if v == 0 {
			return "", false
		}
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func nonEmpty(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}

func (c Category) Valid() bool {
	switch c {
	case CategoryAuth, CategoryAuthorization, CategoryAPI, CategoryDataAccess, CategorySecurity:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailure
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}
