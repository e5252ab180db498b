package planner

import (
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

const (
	// onboardingMonths is how long a new hire waits before being scheduled automatically
	onboardingMonths = 1

	// shortRouteCooldownDays is the window before the target date in which a short route excludes a driver
	shortRouteCooldownDays = 2
)

// FilterEligible keeps AVAILABLE drivers hired at least a month before the target date
// who have no short route recorded in [target-2d, target).
// Roster order is preserved.
func FilterEligible(roster []model.Driver, history []model.RouteRecord, target time.Time) []*model.Driver {
	target = model.DateOnly(target)
	loc := target.Location()
	hireCutoff := target.AddDate(0, -onboardingMonths, 0)
	cooldownStart := target.AddDate(0, 0, -shortRouteCooldownDays)

	recentShort := make(map[string]bool)
	for _, r := range history {
		if r.Kind != model.RouteShort {
			continue
		}
		day := model.CivilDate(r.Date, loc)
		if !day.Before(cooldownStart) && day.Before(target) {
			recentShort[r.DriverID] = true
		}
	}

	eligible := make([]*model.Driver, 0, len(roster))
	for i := range roster {
		d := &roster[i]
		if d.State != model.DriverAvailable {
			continue
		}
		if model.CivilDate(d.HireDate, loc).After(hireCutoff) {
			continue
		}
		if recentShort[d.ID] {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible
}
