package model

import (
	"fmt"
	"time"
)

// ScheduleState is the lifecycle state of a schedule ("plantilla")
type ScheduleState string

const (
	ScheduleDraft     ScheduleState = "DRAFT"
	ScheduleGenerated ScheduleState = "GENERATED"
	ScheduleApproved  ScheduleState = "APPROVED"
	ScheduleFinalized ScheduleState = "FINALIZED"
)

var scheduleNext = map[ScheduleState]ScheduleState{
	ScheduleDraft:     ScheduleGenerated,
	ScheduleGenerated: ScheduleApproved,
	ScheduleApproved:  ScheduleFinalized,
}

// RunType tags how a schedule was produced
type RunType string

const (
	RunAutomatic RunType = "AUTOMATIC"
	RunManual    RunType = "MANUAL"
	RunEmergency RunType = "EMERGENCY"
)

// Schedule holds the shifts produced by one scheduling run for a service date
type Schedule struct {
	ID          string
	RunID       string
	ServiceDate time.Time
	RunType     RunType
	State       ScheduleState
	CreatedAt   time.Time
	GeneratedAt *time.Time
	Metrics     *RunMetrics
	Shifts      []*Shift
}

// Advance moves the schedule to the given state; only the next state in the chain is allowed
func (s *Schedule) Advance(next ScheduleState) error {
	if scheduleNext[s.State] != next {
		return fmt.Errorf("%w: schedule %s cannot move from %s to %s", ErrInvalidTransition, s.ID, s.State, next)
	}
	s.State = next
	return nil
}

// AssignedShifts returns the shifts that have a driver
func (s *Schedule) AssignedShifts() []*Shift {
	assigned := make([]*Shift, 0, len(s.Shifts))
	for _, shift := range s.Shifts {
		if shift.IsAssigned() {
			assigned = append(assigned, shift)
		}
	}
	return assigned
}

// DistinctDrivers returns the number of distinct drivers assigned in the schedule
func (s *Schedule) DistinctDrivers() int {
	seen := make(map[string]bool)
	for _, shift := range s.AssignedShifts() {
		seen[*shift.DriverID] = true
	}
	return len(seen)
}

// RunMetrics are the per-stage counts collected during a scheduling run
type RunMetrics struct {
	RosterSize          int            `json:"roster_size"`
	Eligible            int            `json:"eligible"`
	Operable            int            `json:"operable"`
	GateRejections      map[string]int `json:"gate_rejections,omitempty"`
	ShiftDemand         int            `json:"shift_demand"`
	AssignedGeneral     int            `json:"assigned_general"`
	AssignedSpecialized int            `json:"assigned_specialized"`
	Unassigned          int            `json:"unassigned"`
	Validations         int            `json:"validations"`
	CriticalValidations int            `json:"critical_validations"`
	RepairIterations    int            `json:"repair_iterations"`
	UnresolvedCritical  int            `json:"unresolved_critical"`
	Elapsed             time.Duration  `json:"elapsed"`
}

// RunSummary is handed to the notification collaborator once a schedule is generated
type RunSummary struct {
	RunID              string
	ScheduleID         string
	ServiceDate        time.Time
	TotalShifts        int
	AssignedShifts     int
	DistinctDrivers    int
	ValidationCount    int
	UnresolvedCritical int
	Elapsed            time.Duration
	DryRun             bool
	Metrics            RunMetrics
}

// CriticalAlert lists the CRITICAL validations a run could not resolve
type CriticalAlert struct {
	RunID       string
	ScheduleID  string
	ServiceDate time.Time
	Validations []Validation
}
