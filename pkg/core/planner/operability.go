package planner

import (
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Gate check names, reported when a driver is rejected
const (
	CheckEfficiency  = "efficiency"
	CheckPunctuality = "punctuality"
	CheckRestDays    = "consecutive_days"
	CheckSuspension  = "suspension"
	CheckLicense     = "license"
)

// OperabilityGate applies the hard pass/fail checks a driver must meet to be assigned
type OperabilityGate struct {
	params model.Parameters
}

// NewOperabilityGate creates a gate bound to a parameter snapshot
func NewOperabilityGate(params model.Parameters) *OperabilityGate {
	return &OperabilityGate{params: params}
}

// Check evaluates the five checks in order and returns the name of the first one that fails.
// An empty name means the driver passed.
func (g *OperabilityGate) Check(d *model.Driver, on time.Time) (bool, string) {
	switch {
	case d.Efficiency < g.params.MinEfficiency:
		return false, CheckEfficiency
	case d.Punctuality < g.params.MinPunctuality:
		return false, CheckPunctuality
	case d.ConsecutiveDaysWorked >= g.params.MaxConsecutiveDays:
		return false, CheckRestDays
	case d.HasActiveSuspension(on):
		return false, CheckSuspension
	case !d.LicenseValid:
		return false, CheckLicense
	}
	return true, ""
}

// Filter returns the candidates that pass the gate, preserving order, and a count of
// rejections per failed check
func (g *OperabilityGate) Filter(candidates []*Candidate, on time.Time) ([]*Candidate, map[string]int) {
	passed := make([]*Candidate, 0, len(candidates))
	rejections := make(map[string]int)
	for _, c := range candidates {
		ok, failed := g.Check(c.Driver, on)
		if !ok {
			rejections[failed]++
			continue
		}
		passed = append(passed, c)
	}
	return passed, rejections
}
