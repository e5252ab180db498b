package planner

import (
	"sort"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// AnalyzeLoad attaches weekly and 30-day route counts to each driver and returns the
// candidates sorted ascending by priority:
//
//	routes_last_30_days*10 + (100 - performance_score)*0.5 + consecutive_days_worked*5
//
// Candidates with equal priority keep their input order.
func AnalyzeLoad(drivers []*model.Driver, history []model.RouteRecord, target time.Time) []*Candidate {
	target = model.DateOnly(target)
	windowStart := target.AddDate(0, 0, -30)
	targetYear, targetWeek := target.ISOWeek()

	type counts struct {
		week, last30, short30 int
	}
	byDriver := make(map[string]*counts)
	for _, r := range history {
		c, ok := byDriver[r.DriverID]
		if !ok {
			c = &counts{}
			byDriver[r.DriverID] = c
		}
		day := model.CivilDate(r.Date, target.Location())
		if y, w := day.ISOWeek(); y == targetYear && w == targetWeek {
			c.week++
		}
		if !day.Before(windowStart) && day.Before(target) {
			c.last30++
			if r.Kind == model.RouteShort {
				c.short30++
			}
		}
	}

	candidates := make([]*Candidate, 0, len(drivers))
	for _, d := range drivers {
		c := &Candidate{Driver: d}
		if stats, ok := byDriver[d.ID]; ok {
			c.RoutesThisWeek = stats.week
			c.RoutesLast30Days = stats.last30
			if stats.last30 > 0 {
				c.ShortRouteRatio = float64(stats.short30) / float64(stats.last30)
			}
		}
		c.Priority = float64(c.RoutesLast30Days)*10 +
			(100-d.PerformanceScore())*0.5 +
			float64(d.ConsecutiveDaysWorked)*5
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})
	return candidates
}
