package planner

import (
	"slices"
	"sort"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// SpecializedFallback retries shifts that carry a specialization tag against a separate
// pool of drivers authorized for that tag and based at it
type SpecializedFallback struct {
	gate *OperabilityGate
}

// NewSpecializedFallback creates a fallback stage. Drivers in the specialized pool still
// have to pass the gate so every assigned driver is operable.
func NewSpecializedFallback(gate *OperabilityGate) *SpecializedFallback {
	return &SpecializedFallback{gate: gate}
}

// Fill returns a copy of assignments where unassigned tagged shifts are given to the first
// free driver of the tag's pool. Drivers already consumed by an assignment are skipped.
func (f *SpecializedFallback) Fill(assignments []Assignment, roster []model.Driver, history []model.RouteRecord, target time.Time) []Assignment {
	result := make([]Assignment, len(assignments))
	copy(result, assignments)

	consumed := AssignedDrivers(result)
	known := specializationTags(roster)
	pools := make(map[string][]*Candidate)

	for i := range result {
		a := &result[i]
		if a.IsAssigned() {
			continue
		}

		for _, tag := range shiftTags(a.Shift, known) {
			pool, ok := pools[tag]
			if !ok {
				pool = f.buildPool(tag, roster, history, target)
				pools[tag] = pool
			}
			if f.take(a, pool, consumed) {
				break
			}
		}
	}

	return result
}

func (f *SpecializedFallback) take(a *Assignment, pool []*Candidate, consumed map[string]bool) bool {
	for _, candidate := range pool {
		if consumed[candidate.Driver.ID] || !candidate.IsAvailableAt(a.Shift.Start) {
			continue
		}
		a.Candidate = candidate
		a.Source = model.SourceSpecializedFallback
		consumed[candidate.Driver.ID] = true
		return true
	}
	return false
}

// specializationTags collects every non-standard service tag some driver is authorized for
func specializationTags(roster []model.Driver) map[string]bool {
	known := make(map[string]bool)
	for _, d := range roster {
		for _, tag := range d.AuthorizedServices {
			if tag != model.ServiceStandard {
				known[tag] = true
			}
		}
	}
	return known
}

// shiftTags returns the specialization tags a shift carries, in lookup order: the explicit
// tag, then its service type, then its destination. Service type and destination only count
// when some driver is authorized for them.
func shiftTags(s ShiftDemand, known map[string]bool) []string {
	var tags []string
	if s.Specialization != "" {
		tags = append(tags, s.Specialization)
	}
	for _, tag := range []string{s.ServiceType, s.Destination} {
		if tag != "" && known[tag] && !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

// buildPool selects AVAILABLE, gate-passing drivers authorized for tag whose origin is tag,
// ordered by performance score descending
func (f *SpecializedFallback) buildPool(tag string, roster []model.Driver, history []model.RouteRecord, target time.Time) []*Candidate {
	var drivers []*model.Driver
	for i := range roster {
		d := &roster[i]
		if d.State != model.DriverAvailable || !d.IsAuthorizedFor(tag) || d.Origin != tag {
			continue
		}
		if ok, _ := f.gate.Check(d, target); !ok {
			continue
		}
		drivers = append(drivers, d)
	}

	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].PerformanceScore() > drivers[j].PerformanceScore()
	})

	// Load figures are still computed so the materialized score is comparable to the general pool
	analyzed := AnalyzeLoad(drivers, history, target)
	byID := make(map[string]*Candidate, len(analyzed))
	for _, c := range analyzed {
		c.Score = CompatibilityScore(c, target)
		c.Availability = SlotAvailability(c.Driver)
		byID[c.Driver.ID] = c
	}

	pool := make([]*Candidate, 0, len(drivers))
	for _, d := range drivers {
		pool = append(pool, byID[d.ID])
	}
	return pool
}
