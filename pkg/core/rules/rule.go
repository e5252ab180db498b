package rules

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Input is the read-only state a rule evaluates
type Input struct {
	Schedule *model.Schedule

	// Drivers indexes the roster by driver id
	Drivers map[string]*model.Driver

	// History holds the routes recorded before the service date
	History []model.RouteRecord

	Params model.Parameters
}

// Rule defines the interface for a compliance check run against a materialized schedule.
// Rules are independent of each other and must never modify the input.
type Rule interface {
	// Name returns a human-readable identifier for this rule
	Name() string

	// Type returns the catalog code of the findings this rule produces
	Type() model.ValidationType

	// Severity returns the fixed severity of the findings this rule produces
	Severity() model.Severity

	// Evaluate returns the findings for the schedule. The validator fills in id, status
	// and timestamps, so rules only set type, references, description and payload.
	// Entries that cannot be evaluated are skipped and reported in the returned error
	// alongside the findings of the others.
	Evaluate(in *Input) ([]model.Validation, error)
}

// driverDay is the ordered list of shifts one driver works on the service date
type driverDay struct {
	driverID string
	shifts   []*model.Shift
}

func (d driverDay) first() *model.Shift {
	return d.shifts[0]
}

// groupByDriver returns the assigned shifts of the schedule grouped per driver, each group
// sorted by start time. Groups are ordered by the position of the driver's first shift.
func groupByDriver(schedule *model.Schedule) []driverDay {
	index := make(map[string]int)
	var days []driverDay
	for _, shift := range schedule.Shifts {
		if !shift.IsAssigned() {
			continue
		}
		id := *shift.DriverID
		i, ok := index[id]
		if !ok {
			i = len(days)
			index[id] = i
			days = append(days, driverDay{driverID: id})
		}
		days[i].shifts = append(days[i].shifts, shift)
	}

	for _, d := range days {
		sort.SliceStable(d.shifts, func(i, j int) bool {
			return d.shifts[i].Start.Before(d.shifts[j].Start)
		})
	}
	return days
}

// clockOn returns the given hour and minute on the calendar date of day
func clockOn(day time.Time, hour, minute int) time.Time {
	return model.DateOnly(day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func finding(r Rule, schedule *model.Schedule, driverID string, shift *model.Shift, description string, payload model.Payload) model.Validation {
	v := model.Validation{
		Type:        r.Type(),
		Severity:    r.Severity(),
		Description: description,
		Payload:     payload,
	}
	if driverID != "" {
		v.DriverID = &driverID
	}
	if schedule != nil {
		scheduleID := schedule.ID
		v.ScheduleID = &scheduleID
	}
	if shift != nil {
		shiftID := shift.ID
		v.ShiftID = &shiftID
	}
	return v
}

func hhmm(t time.Time) string {
	return t.Format("15:04")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func missingDriverError(rule, driverID string) error {
	return fmt.Errorf("%s: driver %s is assigned but not in the roster", rule, driverID)
}
