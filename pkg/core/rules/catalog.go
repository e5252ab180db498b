package rules

import (
	"errors"
	"fmt"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Catalog returns the standard rules in evaluation order
func Catalog() []Rule {
	return []Rule{
		NewSecondAssignmentRule(),
		NewEarlyReturnRestRule(),
		NewConsecutiveDaysRule(),
		NewOverlapRule(),
	}
}

// SecondAssignmentRule flags drivers who finish their only shift of the day by noon and
// could take a second departure.
//
// Fires when:
//   - the driver's first shift of the day ends at or before 12:00
//   - the driver has exactly one shift that day
type SecondAssignmentRule struct{}

func NewSecondAssignmentRule() *SecondAssignmentRule {
	return &SecondAssignmentRule{}
}

func (r *SecondAssignmentRule) Name() string {
	return "SecondAssignment"
}

func (r *SecondAssignmentRule) Type() model.ValidationType {
	return model.ValidationSecondAssignmentCandidate
}

func (r *SecondAssignmentRule) Severity() model.Severity {
	return model.SeverityWarning
}

func (r *SecondAssignmentRule) Evaluate(in *Input) ([]model.Validation, error) {
	var findings []model.Validation
	var errs []error
	for _, day := range groupByDriver(in.Schedule) {
		first := day.first()
		if first.End.After(clockOn(first.Date, 12, 0)) || len(day.shifts) != 1 {
			continue
		}

		payload, err := model.NewPayload(
			"hora_fin", hhmm(first.End),
			"salidas", len(day.shifts),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", day.driverID, err))
			continue
		}

		description := fmt.Sprintf("Driver %s finishes shift %s at %s and can take a second assignment", day.driverID, first.Code, hhmm(first.End))
		findings = append(findings, finding(r, in.Schedule, day.driverID, first, description, payload))
	}
	return findings, errors.Join(errs...)
}

// EarlyReturnRestRule flags drivers whose first shift ends very early after having worked
// the previous calendar day, a risk of returning without the minimum rest.
//
// Fires when:
//   - the driver's first shift of the day ends at or before 09:00
//   - the driver has at least one recorded route on the previous calendar day
//
// Evidence:
//   - horas_acumuladas: hours worked the previous day plus the duration of the first shift
//   - horas_descanso: hours between the last route of the previous day and the first shift
type EarlyReturnRestRule struct{}

func NewEarlyReturnRestRule() *EarlyReturnRestRule {
	return &EarlyReturnRestRule{}
}

func (r *EarlyReturnRestRule) Name() string {
	return "EarlyReturnRest"
}

func (r *EarlyReturnRestRule) Type() model.ValidationType {
	return model.ValidationInsufficientRest
}

func (r *EarlyReturnRestRule) Severity() model.Severity {
	return model.SeverityCritical
}

func (r *EarlyReturnRestRule) Evaluate(in *Input) ([]model.Validation, error) {
	var findings []model.Validation
	var errs []error
	for _, day := range groupByDriver(in.Schedule) {
		first := day.first()
		if first.End.After(clockOn(first.Date, 9, 0)) {
			continue
		}

		previous := model.DateOnly(first.Date).AddDate(0, 0, -1)
		var workedHours float64
		var lastEnd *model.RouteRecord
		for i := range in.History {
			route := &in.History[i]
			if route.DriverID != day.driverID || !model.SameDate(route.Date, previous) {
				continue
			}
			workedHours += route.Hours()
			if lastEnd == nil || route.End.After(lastEnd.End) {
				lastEnd = route
			}
		}
		if lastEnd == nil {
			continue
		}

		accumulated := workedHours + first.Duration().Hours()
		rest := first.Start.Sub(lastEnd.End).Hours()

		payload, err := model.NewPayload(
			"hora_fin", hhmm(first.End),
			"horas_acumuladas", round2(accumulated),
			"horas_descanso", round2(rest),
			"horas_minimas_descanso", in.Params.MinRestHours,
			"fecha_anterior", previous.Format("2006-01-02"),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", day.driverID, err))
			continue
		}

		description := fmt.Sprintf("Driver %s worked on %s and finishes shift %s at %s (%.2fh accumulated, %.2fh rest, minimum %.0fh)",
			day.driverID, previous.Format("2006-01-02"), first.Code, hhmm(first.End), accumulated, rest, in.Params.MinRestHours)
		findings = append(findings, finding(r, in.Schedule, day.driverID, first, description, payload))
	}
	return findings, errors.Join(errs...)
}

// ConsecutiveDaysRule flags drivers one day away from mandatory rest.
//
// Fires when:
//   - the driver's consecutive-days-worked counter is at least the maximum minus one
type ConsecutiveDaysRule struct{}

func NewConsecutiveDaysRule() *ConsecutiveDaysRule {
	return &ConsecutiveDaysRule{}
}

func (r *ConsecutiveDaysRule) Name() string {
	return "ConsecutiveDays"
}

func (r *ConsecutiveDaysRule) Type() model.ValidationType {
	return model.ValidationApproachingRest
}

func (r *ConsecutiveDaysRule) Severity() model.Severity {
	return model.SeverityWarning
}

func (r *ConsecutiveDaysRule) Evaluate(in *Input) ([]model.Validation, error) {
	threshold := in.Params.MaxConsecutiveDays - 1

	var findings []model.Validation
	var errs []error
	for _, day := range groupByDriver(in.Schedule) {
		driver, ok := in.Drivers[day.driverID]
		if !ok {
			errs = append(errs, missingDriverError(r.Name(), day.driverID))
			continue
		}
		if driver.ConsecutiveDaysWorked < threshold {
			continue
		}

		payload, err := model.NewPayload(
			"dias_consecutivos", driver.ConsecutiveDaysWorked,
			"dias_maximos", in.Params.MaxConsecutiveDays,
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", day.driverID, err))
			continue
		}

		description := fmt.Sprintf("Driver %s has worked %d consecutive days, mandatory rest after %d",
			day.driverID, driver.ConsecutiveDaysWorked, in.Params.MaxConsecutiveDays)
		findings = append(findings, finding(r, in.Schedule, day.driverID, day.first(), description, payload))
	}
	return findings, errors.Join(errs...)
}

// OverlapRule flags pairs of shifts of the same driver whose time ranges intersect.
// Automatic runs never produce overlaps; the rule guards manual edits and re-validation.
type OverlapRule struct{}

func NewOverlapRule() *OverlapRule {
	return &OverlapRule{}
}

func (r *OverlapRule) Name() string {
	return "ScheduleOverlap"
}

func (r *OverlapRule) Type() model.ValidationType {
	return model.ValidationScheduleOverlap
}

func (r *OverlapRule) Severity() model.Severity {
	return model.SeverityCritical
}

func (r *OverlapRule) Evaluate(in *Input) ([]model.Validation, error) {
	var findings []model.Validation
	var errs []error
	for _, day := range groupByDriver(in.Schedule) {
		for i := 0; i < len(day.shifts); i++ {
			for j := i + 1; j < len(day.shifts); j++ {
				a, b := day.shifts[i], day.shifts[j]
				if !a.Overlaps(b) {
					continue
				}

				payload, err := model.NewPayload(
					"turno_a", a.Code,
					"turno_b", b.Code,
					"inicio", []string{hhmm(a.Start), hhmm(b.Start)},
					"fin", []string{hhmm(a.End), hhmm(b.End)},
				)
				if err != nil {
					errs = append(errs, fmt.Errorf("driver %s: %w", day.driverID, err))
					continue
				}

				description := fmt.Sprintf("Driver %s is assigned to overlapping shifts %s and %s", day.driverID, a.Code, b.Code)
				// The later shift is the offending one
				findings = append(findings, finding(r, in.Schedule, day.driverID, b, description, payload))
			}
		}
	}
	return findings, errors.Join(errs...)
}
