package model

import (
	"fmt"
	"slices"
	"time"
)

// DriverState is the availability state of a driver
type DriverState string

const (
	DriverAvailable    DriverState = "AVAILABLE"
	DriverPhysicalRest DriverState = "PHYSICAL_REST"
	DriverWeeklyRest   DriverState = "WEEKLY_REST"
	DriverVacation     DriverState = "VACATION"
	DriverSuspended    DriverState = "SUSPENDED"
	DriverInactive     DriverState = "INACTIVE"
)

func (s DriverState) IsValid() bool {
	switch s {
	case DriverAvailable, DriverPhysicalRest, DriverWeeklyRest, DriverVacation, DriverSuspended, DriverInactive:
		return true
	}
	return false
}

// IsRest reports whether the state is one of the rest states that reset the consecutive-days counter
func (s DriverState) IsRest() bool {
	return s == DriverPhysicalRest || s == DriverWeeklyRest
}

// Service tags a driver can be authorized for
const (
	ServiceStandard    = "STANDARD"
	ServiceVIP         = "VIP"
	ServiceSpecialized = "SPECIALIZED"
)

// EfficiencyWindow is the number of completed shifts the rolling efficiency averages over
const EfficiencyWindow = 10

// Driver represents a bus driver ("conductor")
type Driver struct {
	ID                    string
	Code                  string
	FullName              string
	Email                 string
	HireDate              time.Time
	State                 DriverState
	Efficiency            float64
	Punctuality           float64
	ConsecutiveDaysWorked int
	AuthorizedServices    []string
	NightAuthorized       bool
	LicenseValid          bool
	SuspendedUntil        *time.Time
	Origin                string
}

// PerformanceScore is the driver's general performance, the mean of efficiency and punctuality
func (d *Driver) PerformanceScore() float64 {
	return (clamp(d.Efficiency, 0, 100) + clamp(d.Punctuality, 0, 100)) / 2
}

// IsAuthorizedFor returns true if the driver carries the given service tag
func (d *Driver) IsAuthorizedFor(tag string) bool {
	return slices.Contains(d.AuthorizedServices, tag)
}

// HasActiveSuspension returns true if the driver is suspended on the given date
func (d *Driver) HasActiveSuspension(on time.Time) bool {
	if d.State == DriverSuspended {
		return true
	}
	if d.SuspendedUntil == nil {
		return false
	}
	return !CivilDate(*d.SuspendedUntil, on.Location()).Before(DateOnly(on))
}

// MonthsSinceHire returns the number of whole months between hire date and the given date
func (d *Driver) MonthsSinceHire(on time.Time) int {
	hired := CivilDate(d.HireDate, on.Location())
	if on.Before(hired) {
		return 0
	}
	months := (on.Year()-hired.Year())*12 + int(on.Month()-hired.Month())
	if on.Day() < hired.Day() {
		months--
	}
	return max(months, 0)
}

// driverTransitions lists the states reachable from each state.
// SUSPENDED and INACTIVE can only leave through AVAILABLE.
var driverTransitions = map[DriverState][]DriverState{
	DriverAvailable:    {DriverPhysicalRest, DriverWeeklyRest, DriverVacation, DriverSuspended, DriverInactive},
	DriverPhysicalRest: {DriverAvailable, DriverWeeklyRest, DriverSuspended, DriverInactive},
	DriverWeeklyRest:   {DriverAvailable, DriverPhysicalRest, DriverSuspended, DriverInactive},
	DriverVacation:     {DriverAvailable, DriverSuspended, DriverInactive},
	DriverSuspended:    {DriverAvailable, DriverInactive},
	DriverInactive:     {DriverAvailable},
}

// WithState returns a copy of the driver moved to the new state.
// Entering a rest state resets the consecutive-days counter.
func (d Driver) WithState(next DriverState) (Driver, error) {
	if !next.IsValid() {
		return d, fmt.Errorf("%w: unknown driver state %q", ErrInvalidTransition, next)
	}
	if !slices.Contains(driverTransitions[d.State], next) {
		return d, fmt.Errorf("%w: driver %s cannot move from %s to %s", ErrInvalidTransition, d.ID, d.State, next)
	}
	d.State = next
	if next.IsRest() {
		d.ConsecutiveDaysWorked = 0
	}
	if next == DriverAvailable {
		d.SuspendedUntil = nil
	}
	return d, nil
}

// WithCompletedShift returns a copy of the driver after completing a shift.
// recent holds the realized efficiencies of previously completed shifts, newest last.
func (d Driver) WithCompletedShift(realizedEfficiency float64, recent []float64) Driver {
	d.ConsecutiveDaysWorked = max(d.ConsecutiveDaysWorked, 0) + 1

	window := append(slices.Clone(recent), realizedEfficiency)
	if len(window) > EfficiencyWindow {
		window = window[len(window)-EfficiencyWindow:]
	}
	total := 0.0
	for _, e := range window {
		total += clamp(e, 0, 100)
	}
	d.Efficiency = total / float64(len(window))
	return d
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
