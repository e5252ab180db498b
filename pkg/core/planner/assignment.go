package planner

import "github.com/sipat/crew-scheduler/pkg/core/model"

// Strategy matches shift demands to candidates.
// Implementations must consume each candidate at most once.
type Strategy interface {
	Name() string
	Assign(shifts []ShiftDemand, pool []*Candidate) []Assignment
}

// GreedyStrategy walks the shifts in their given order and gives each one to the first
// still-free candidate, in score-descending pool order, whose time slot is available
type GreedyStrategy struct{}

// NewGreedyStrategy creates the default assignment strategy
func NewGreedyStrategy() *GreedyStrategy {
	return &GreedyStrategy{}
}

func (g *GreedyStrategy) Name() string {
	return "greedy"
}

// Assign expects pool already sorted by score descending
func (g *GreedyStrategy) Assign(shifts []ShiftDemand, pool []*Candidate) []Assignment {
	consumed := make(map[string]bool, len(pool))
	assignments := make([]Assignment, 0, len(shifts))

	for _, shift := range shifts {
		assignment := Assignment{Shift: shift, Source: model.SourceAutomatic}

		for _, candidate := range pool {
			if consumed[candidate.Driver.ID] {
				continue
			}
			if !candidate.IsAvailableAt(shift.Start) {
				continue
			}
			// Pool is score-descending, so the first match is the best; ties resolve by encounter order
			assignment.Candidate = candidate
			consumed[candidate.Driver.ID] = true
			break
		}

		assignments = append(assignments, assignment)
	}

	return assignments
}
