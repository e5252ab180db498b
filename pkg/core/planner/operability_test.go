package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

func TestOperabilityGate_Check(t *testing.T) {
	gate := NewOperabilityGate(model.DefaultParameters())
	suspendedUntil := target.AddDate(0, 0, 1)

	tests := []struct {
		name       string
		mutate     func(d *model.Driver)
		wantPass   bool
		wantFailed string
	}{
		{"operable driver", func(d *model.Driver) {}, true, ""},
		{"efficiency at minimum passes", func(d *model.Driver) { d.Efficiency = 80 }, true, ""},
		{"low efficiency", func(d *model.Driver) { d.Efficiency = 79.9 }, false, CheckEfficiency},
		{"low punctuality", func(d *model.Driver) { d.Punctuality = 84 }, false, CheckPunctuality},
		{"consecutive days at max", func(d *model.Driver) { d.ConsecutiveDaysWorked = 6 }, false, CheckRestDays},
		{"consecutive days below max", func(d *model.Driver) { d.ConsecutiveDaysWorked = 5 }, true, ""},
		{"active suspension", func(d *model.Driver) { d.SuspendedUntil = &suspendedUntil }, false, CheckSuspension},
		{"invalid license", func(d *model.Driver) { d.LicenseValid = false }, false, CheckLicense},
		{"first failing check is reported", func(d *model.Driver) {
			d.Punctuality = 10
			d.LicenseValid = false
		}, false, CheckPunctuality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriver("d1")
			tt.mutate(&d)

			passed, failed := gate.Check(&d, target)
			assert.Equal(t, tt.wantPass, passed)
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}

func TestOperabilityGate_SingleDriverAtMaxConsecutiveDays(t *testing.T) {
	// One driver with consecutive_days_worked == default max leaves nobody eligible
	roster := newDrivers(1)
	roster[0].ConsecutiveDaysWorked = 6

	eligible := FilterEligible(roster, nil, target)
	candidates := AnalyzeLoad(eligible, nil, target)
	passed, rejections := NewOperabilityGate(model.DefaultParameters()).Filter(candidates, target)

	assert.Empty(t, passed)
	assert.Equal(t, map[string]int{CheckRestDays: 1}, rejections)
}

func TestOperabilityGate_FilterPreservesOrder(t *testing.T) {
	drivers := newDrivers(4)
	drivers[1].LicenseValid = false

	candidates := make([]*Candidate, len(drivers))
	for i := range drivers {
		candidates[i] = &Candidate{Driver: &drivers[i]}
	}

	passed, _ := NewOperabilityGate(model.DefaultParameters()).Filter(candidates, target)
	assert.Len(t, passed, 3)
	assert.Equal(t, "d1", passed[0].Driver.ID)
	assert.Equal(t, "d3", passed[1].Driver.ID)
	assert.Equal(t, "d4", passed[2].Driver.ID)
}
