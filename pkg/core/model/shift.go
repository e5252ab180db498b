package model

import (
	"fmt"
	"slices"
	"time"
)

// ShiftState is the lifecycle state of a shift ("turno")
type ShiftState string

const (
	ShiftPending    ShiftState = "PENDING"
	ShiftAssigned   ShiftState = "ASSIGNED"
	ShiftInProgress ShiftState = "IN_PROGRESS"
	ShiftCompleted  ShiftState = "COMPLETED"
	ShiftCancelled  ShiftState = "CANCELLED"
	ShiftDelayed    ShiftState = "DELAYED"
	ShiftSuspended  ShiftState = "SUSPENDED"
)

var shiftTransitions = map[ShiftState][]ShiftState{
	ShiftPending:    {ShiftAssigned, ShiftCancelled},
	ShiftAssigned:   {ShiftPending, ShiftInProgress, ShiftCancelled, ShiftDelayed, ShiftSuspended},
	ShiftInProgress: {ShiftCompleted, ShiftCancelled, ShiftDelayed, ShiftSuspended},
	ShiftDelayed:    {ShiftInProgress, ShiftCancelled},
	ShiftSuspended:  {ShiftInProgress, ShiftCancelled},
	ShiftCompleted:  {},
	ShiftCancelled:  {},
}

// CanTransition reports whether a shift may move from s to next
func (s ShiftState) CanTransition(next ShiftState) bool {
	return slices.Contains(shiftTransitions[s], next)
}

// RouteKind classifies a route as short or long haul
type RouteKind string

const (
	RouteShort RouteKind = "SHORT"
	RouteLong  RouteKind = "LONG"
)

// AssignmentSource records which pipeline stage produced an assignment
type AssignmentSource string

const (
	SourceAutomatic           AssignmentSource = "automatic"
	SourceSpecializedFallback AssignmentSource = "specialized-fallback"
	SourceManual              AssignmentSource = "manual"
)

// Shift represents one scheduled departure/arrival unit of work
type Shift struct {
	ID                 string
	ScheduleID         string
	Position           int
	Code               string
	Date               time.Time
	Start              time.Time
	End                time.Time
	ServiceType        string
	Specialization     string
	Origin             string
	Destination        string
	RouteKind          RouteKind
	DriverID           *string
	State              ShiftState
	Score              float64
	Source             AssignmentSource
	RealizedEfficiency *float64
}

// Duration returns the scheduled duration of the shift
func (s *Shift) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IsAssigned returns true if a driver is assigned to the shift
func (s *Shift) IsAssigned() bool {
	return s.DriverID != nil && *s.DriverID != ""
}

// Overlaps reports whether the half-open intervals [Start, End) of two shifts intersect
func (s *Shift) Overlaps(other *Shift) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// TransitionTo moves the shift to the next state if permitted
func (s *Shift) TransitionTo(next ShiftState) error {
	if !s.State.CanTransition(next) {
		return fmt.Errorf("%w: shift %s cannot move from %s to %s", ErrInvalidTransition, s.ID, s.State, next)
	}
	s.State = next
	return nil
}

// Assign sets the driver of a pending shift
func (s *Shift) Assign(driverID string, score float64, source AssignmentSource) error {
	if err := s.TransitionTo(ShiftAssigned); err != nil {
		return err
	}
	s.DriverID = &driverID
	s.Score = score
	s.Source = source
	return nil
}

// Unassign returns an assigned shift to the pending pool
func (s *Shift) Unassign() error {
	if err := s.TransitionTo(ShiftPending); err != nil {
		return err
	}
	s.DriverID = nil
	s.Score = 0
	return nil
}

// Complete marks an in-progress shift completed and computes its realized efficiency,
// the ratio of planned to actual duration capped at 100
func (s *Shift) Complete(actualStart, actualEnd time.Time) (float64, error) {
	if !actualEnd.After(actualStart) {
		return 0, fmt.Errorf("actual end %s must be after actual start %s", actualEnd, actualStart)
	}
	if err := s.TransitionTo(ShiftCompleted); err != nil {
		return 0, err
	}
	efficiency := 100 * s.Duration().Hours() / actualEnd.Sub(actualStart).Hours()
	efficiency = clamp(efficiency, 0, 100)
	s.RealizedEfficiency = &efficiency
	return efficiency, nil
}

// TimeSlot is one of the four time-of-day availability slots
type TimeSlot string

const (
	SlotMadrugada TimeSlot = "madrugada" // 00:00-06:00
	SlotManana    TimeSlot = "manana"    // 06:00-12:00
	SlotTarde     TimeSlot = "tarde"     // 12:00-18:00
	SlotNoche     TimeSlot = "noche"     // 18:00-24:00
)

// SlotOf returns the time slot a clock time falls in
func SlotOf(t time.Time) TimeSlot {
	switch h := t.Hour(); {
	case h < 6:
		return SlotMadrugada
	case h < 12:
		return SlotManana
	case h < 18:
		return SlotTarde
	default:
		return SlotNoche
	}
}

// RouteRecord is a historical route worked by a driver
type RouteRecord struct {
	ID       string
	DriverID string
	ShiftID  string
	Date     time.Time
	Start    time.Time
	End      time.Time
	Kind     RouteKind
}

// Hours returns the worked duration of the route in hours
func (r *RouteRecord) Hours() float64 {
	return r.End.Sub(r.Start).Hours()
}

// DateOnly truncates t to midnight in its own location
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CivilDate returns midnight in loc of the calendar date t carries in its own location.
// DATE columns arrive as UTC midnight, so they go through CivilDate before being compared
// with a service date in the configured zone.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDate reports whether two times fall on the same calendar date
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
