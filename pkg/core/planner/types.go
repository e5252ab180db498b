package planner

import (
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Candidate is a driver moving through the planning stages together with the
// transient statistics and score the stages attach to it
type Candidate struct {
	Driver *model.Driver

	// RoutesThisWeek is the number of routes in the ISO week containing the target date
	RoutesThisWeek int

	// RoutesLast30Days is the number of routes in the 30 days before the target date
	RoutesLast30Days int

	// ShortRouteRatio is the share of short routes among RoutesLast30Days (0 when there are none)
	ShortRouteRatio float64

	// Priority orders candidates for fairness; lower values are considered first
	Priority float64

	// Score is the 0-100 compatibility score
	Score float64

	// Availability maps each time slot to whether the driver can take a shift starting in it
	Availability map[model.TimeSlot]bool
}

// IsAvailableAt returns true if the candidate may take a shift starting at t
func (c *Candidate) IsAvailableAt(t time.Time) bool {
	return c.Availability[model.SlotOf(t)]
}

// ShiftDemand is one shift that needs a driver on the target date
type ShiftDemand struct {
	// Index is the position of the demand in the run's shift list
	Index int

	Code           string
	Date           time.Time
	Start          time.Time
	End            time.Time
	ServiceType    string
	Specialization string
	Origin         string
	Destination    string
	RouteKind      model.RouteKind
}

// Assignment pairs a shift demand with the candidate chosen for it.
// Candidate is nil when the shift could not be filled.
type Assignment struct {
	Shift     ShiftDemand
	Candidate *Candidate
	Source    model.AssignmentSource
}

// IsAssigned returns true if a driver was found for the shift
func (a *Assignment) IsAssigned() bool {
	return a.Candidate != nil
}

// AssignedDrivers returns the ids of drivers consumed by the given assignments
func AssignedDrivers(assignments []Assignment) map[string]bool {
	used := make(map[string]bool)
	for _, a := range assignments {
		if a.Candidate != nil {
			used[a.Candidate.Driver.ID] = true
		}
	}
	return used
}
