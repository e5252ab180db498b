package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Severity ranks a validation finding
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity parses the stored name of a severity
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(s) {
	case "INFO":
		return SeverityInfo, nil
	case "WARNING", "ADVERTENCIA":
		return SeverityWarning, nil
	case "CRITICAL", "CRITICA":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// ValidationType is a code from the fixed validation catalog
type ValidationType string

const (
	ValidationSecondAssignmentCandidate ValidationType = "second_assignment_candidate"
	ValidationInsufficientRest          ValidationType = "insufficient_rest_early_return"
	ValidationApproachingRest           ValidationType = "approaching_mandatory_rest"
	ValidationScheduleOverlap           ValidationType = "schedule_overlap"
	ValidationExceededRestFreeDays      ValidationType = "exceeded_rest_free_days"
)

// ValidationStatus is the review state of a validation
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "PENDING"
	ValidationInReview ValidationStatus = "IN_REVIEW"
	ValidationResolved ValidationStatus = "RESOLVED"
	ValidationRejected ValidationStatus = "REJECTED"
)

var validationTransitions = map[ValidationStatus][]ValidationStatus{
	ValidationPending:  {ValidationInReview, ValidationResolved, ValidationRejected},
	ValidationInReview: {ValidationResolved, ValidationRejected},
	ValidationRejected: {ValidationPending},
	ValidationResolved: {},
}

// IsOpen reports whether the validation still needs attention
func (s ValidationStatus) IsOpen() bool {
	return s == ValidationPending || s == ValidationInReview
}

// Validation is a structured, severity-ranked compliance finding
type Validation struct {
	ID             string
	Type           ValidationType
	Severity       Severity
	DriverID       *string
	ScheduleID     *string
	ShiftID        *string
	Description    string
	Payload        Payload
	Status         ValidationStatus
	ResolutionNote string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Key identifies the finding independently of its id, used to match re-validation results
func (v *Validation) Key() string {
	return strings.Join([]string{string(v.Type), deref(v.DriverID), deref(v.ScheduleID), deref(v.ShiftID)}, "|")
}

// TransitionTo moves the validation to the next status.
// Resolving requires a non-empty note, which is stored on the validation.
func (v *Validation) TransitionTo(next ValidationStatus, note string, at time.Time) error {
	if !slices.Contains(validationTransitions[v.Status], next) {
		return fmt.Errorf("%w: validation %s cannot move from %s to %s", ErrInvalidTransition, v.ID, v.Status, next)
	}
	if next == ValidationResolved {
		if strings.TrimSpace(note) == "" {
			return ErrResolutionNoteRequired
		}
		v.ResolutionNote = note
	}
	v.Status = next
	v.UpdatedAt = at
	return nil
}

// FilterSeverity returns the validations with exactly the given severity
func FilterSeverity(validations []Validation, severity Severity) []Validation {
	var out []Validation
	for _, v := range validations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Payload is the evidence attached to a validation.
// Values are restricted to bool, int, float64, string, []string and []float64.
type Payload map[string]any

// NewPayload builds a payload from key/value pairs and rejects unsupported value types
func NewPayload(kv ...any) (Payload, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of key/value arguments", ErrInvalidPayload)
	}
	p := make(Payload, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: key %v is not a string", ErrInvalidPayload, kv[i])
		}
		p[key] = kv[i+1]
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every value holds a supported type
func (p Payload) Validate() error {
	for k, v := range p {
		switch v.(type) {
		case bool, int, float64, string, []string, []float64:
		default:
			return fmt.Errorf("%w: key %q has unsupported type %T", ErrInvalidPayload, k, v)
		}
	}
	return nil
}

// Float returns a numeric payload value as float64
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
