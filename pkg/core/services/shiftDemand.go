package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/sipat/crew-scheduler/internal/config"
	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/planner"
)

// recurrenceAnchor is the DTSTART given to templates whose rrule does not set one, so INTERVAL
// counts from the same Monday on every run
var recurrenceAnchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ExpandShiftTemplates returns the shift demand of the target date: one demand per template
// whose rrule has an occurrence on that date, ordered by start time and then template order.
// A template ending at or before its start time ends on the following day.
func ExpandShiftTemplates(templates []config.ShiftTemplate, target time.Time) ([]planner.ShiftDemand, error) {
	day := model.DateOnly(target)
	dayEnd := day.AddDate(0, 0, 1).Add(-time.Nanosecond)

	var demand []planner.ShiftDemand
	for i, tmpl := range templates {
		runs, err := occursOn(tmpl.RRule, day, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for shift template %d (%s): %w", i, tmpl.Code, err)
		}
		if !runs {
			continue
		}

		start, err := clockOn(day, tmpl.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start time for shift template %s: %w", tmpl.Code, err)
		}
		end, err := clockOn(day, tmpl.End)
		if err != nil {
			return nil, fmt.Errorf("invalid end time for shift template %s: %w", tmpl.Code, err)
		}
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}

		demand = append(demand, planner.ShiftDemand{
			Code:           tmpl.Code,
			Date:           day,
			Start:          start,
			End:            end,
			ServiceType:    tmpl.ServiceType,
			Specialization: tmpl.Specialization,
			Origin:         tmpl.Origin,
			Destination:    tmpl.Destination,
			RouteKind:      model.RouteKind(tmpl.RouteKind),
		})
	}

	sort.SliceStable(demand, func(i, j int) bool {
		return demand[i].Start.Before(demand[j].Start)
	})
	for i := range demand {
		demand[i].Index = i
	}

	return demand, nil
}

func occursOn(rule string, dayStart, dayEnd time.Time) (bool, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return false, err
	}
	if opt.Dtstart.IsZero() {
		anchor := recurrenceAnchor
		opt.Dtstart = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, dayStart.Location())
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return false, err
	}
	return len(r.Between(dayStart, dayEnd, true)) > 0, nil
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
