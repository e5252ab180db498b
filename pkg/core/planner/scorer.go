package planner

import (
	"sort"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// Score term ceilings; they add up to 100
const (
	weightEfficiency   = 30.0
	weightPunctuality  = 25.0
	maxExperience      = 20.0
	restHeadroomHigh   = 15.0
	restHeadroomLow    = 5.0
	recentLoadBonus    = 10.0
	experiencePerMonth = 2.0

	// restHeadroomThreshold is the consecutive-days count from which the low headroom applies
	restHeadroomThreshold = 5

	// recentLoadThreshold is the 30-day route count from which the recent-load bonus is lost
	recentLoadThreshold = 3
)

// CompatibilityScore computes the 0-100 fitness of a candidate for assignment on the given date.
// Each term is clipped to its own range before summing.
func CompatibilityScore(c *Candidate, on time.Time) float64 {
	d := c.Driver

	performance := clip(d.Efficiency/100, 0, 1)*weightEfficiency +
		clip(d.Punctuality/100, 0, 1)*weightPunctuality

	experience := clip(float64(d.MonthsSinceHire(on))*experiencePerMonth, 0, maxExperience)

	restHeadroom := restHeadroomLow
	if d.ConsecutiveDaysWorked < restHeadroomThreshold {
		restHeadroom = restHeadroomHigh
	}

	recentLoad := 0.0
	if c.RoutesLast30Days < recentLoadThreshold {
		recentLoad = recentLoadBonus
	}

	return clip(performance+experience+restHeadroom+recentLoad, 0, 100)
}

// SlotAvailability returns the time-of-day availability of a driver.
// Only the night slot depends on the driver, through night authorization.
func SlotAvailability(d *model.Driver) map[model.TimeSlot]bool {
	return map[model.TimeSlot]bool{
		model.SlotMadrugada: true,
		model.SlotManana:    true,
		model.SlotTarde:     true,
		model.SlotNoche:     d.NightAuthorized,
	}
}

// ScoreCandidates sets Score and Availability on every candidate and returns them sorted by
// score descending. Ties keep the priority order produced by AnalyzeLoad.
func ScoreCandidates(candidates []*Candidate, on time.Time) []*Candidate {
	for _, c := range candidates {
		c.Score = CompatibilityScore(c, on)
		c.Availability = SlotAvailability(c.Driver)
	}

	sorted := make([]*Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

func clip(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
