package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverWithState_RestResetsCounter(t *testing.T) {
	d := Driver{ID: "d1", State: DriverAvailable, ConsecutiveDaysWorked: 5}

	rested, err := d.WithState(DriverWeeklyRest)
	require.NoError(t, err)
	assert.Equal(t, DriverWeeklyRest, rested.State)
	assert.Equal(t, 0, rested.ConsecutiveDaysWorked)

	// Original value is untouched
	assert.Equal(t, 5, d.ConsecutiveDaysWorked)
}

func TestDriverWithState_NonRestKeepsCounter(t *testing.T) {
	d := Driver{ID: "d1", State: DriverAvailable, ConsecutiveDaysWorked: 3}

	vacation, err := d.WithState(DriverVacation)
	require.NoError(t, err)
	assert.Equal(t, 3, vacation.ConsecutiveDaysWorked, "only rest states reset the counter")
}

func TestDriverWithState_InvalidTransition(t *testing.T) {
	d := Driver{ID: "d1", State: DriverSuspended}

	_, err := d.WithState(DriverVacation)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = d.WithState(DriverState("ON_STRIKE"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDriverWithCompletedShift_RollingEfficiency(t *testing.T) {
	d := Driver{ID: "d1", Efficiency: 50, ConsecutiveDaysWorked: 2}

	// Eleven previous shifts at 80, only the last nine count alongside the new one
	recent := []float64{0, 80, 80, 80, 80, 80, 80, 80, 80, 80, 80}
	after := d.WithCompletedShift(100, recent)

	assert.Equal(t, 3, after.ConsecutiveDaysWorked)
	assert.InDelta(t, 82.0, after.Efficiency, 0.0001)
}

func TestDriverWithCompletedShift_NegativeCounterClamped(t *testing.T) {
	d := Driver{ID: "d1", ConsecutiveDaysWorked: -4}

	after := d.WithCompletedShift(90, nil)
	assert.Equal(t, 1, after.ConsecutiveDaysWorked)
	assert.InDelta(t, 90.0, after.Efficiency, 0.0001)
}

func TestDriverMonthsSinceHire(t *testing.T) {
	d := Driver{HireDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, 0, d.MonthsSinceHire(time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, d.MonthsSinceHire(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24, d.MonthsSinceHire(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, d.MonthsSinceHire(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDriverHasActiveSuspension(t *testing.T) {
	on := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	until := on.AddDate(0, 0, 2)
	expired := on.AddDate(0, 0, -1)

	assert.True(t, (&Driver{State: DriverSuspended}).HasActiveSuspension(on))
	assert.True(t, (&Driver{State: DriverAvailable, SuspendedUntil: &until}).HasActiveSuspension(on))
	assert.False(t, (&Driver{State: DriverAvailable, SuspendedUntil: &expired}).HasActiveSuspension(on))
	assert.False(t, (&Driver{State: DriverAvailable}).HasActiveSuspension(on))
}

func TestDriverHasActiveSuspension_StoredDateAgainstZonedDay(t *testing.T) {
	lima := time.FixedZone("UTC-5", -5*60*60)
	on := time.Date(2026, 6, 10, 0, 0, 0, 0, lima)

	// DATE columns come back as UTC midnight
	lastDay := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	dayBefore := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)

	assert.True(t, (&Driver{State: DriverAvailable, SuspendedUntil: &lastDay}).HasActiveSuspension(on))
	assert.False(t, (&Driver{State: DriverAvailable, SuspendedUntil: &dayBefore}).HasActiveSuspension(on))
}

func TestDriverMonthsSinceHire_StoredDateAgainstZonedDay(t *testing.T) {
	east := time.FixedZone("UTC+2", 2*60*60)
	d := Driver{HireDate: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, 1, d.MonthsSinceHire(time.Date(2026, 6, 10, 0, 0, 0, 0, east)))
	assert.Equal(t, 0, d.MonthsSinceHire(time.Date(2026, 6, 9, 0, 0, 0, 0, east)))
	assert.Equal(t, 0, d.MonthsSinceHire(time.Date(2026, 5, 10, 0, 0, 0, 0, east)))
}

func TestCivilDate(t *testing.T) {
	lima := time.FixedZone("UTC-5", -5*60*60)
	stored := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, lima), CivilDate(stored, lima))
}

func TestShiftTransitions_CompletedIsTerminal(t *testing.T) {
	for _, next := range []ShiftState{ShiftPending, ShiftAssigned, ShiftInProgress, ShiftCancelled, ShiftDelayed, ShiftSuspended} {
		assert.False(t, ShiftCompleted.CanTransition(next), "COMPLETED must not move to %s", next)
	}
}

func TestShiftComplete_RealizedEfficiency(t *testing.T) {
	start := time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)
	s := &Shift{ID: "s1", State: ShiftInProgress, Start: start, End: start.Add(8 * time.Hour)}

	eff, err := s.Complete(start, start.Add(10*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 80.0, eff, 0.0001)
	assert.Equal(t, ShiftCompleted, s.State)
	require.NotNil(t, s.RealizedEfficiency)

	// Completing again is rejected
	_, err = s.Complete(start, start.Add(8*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestShiftAssignAndUnassign(t *testing.T) {
	s := &Shift{ID: "s1", State: ShiftPending}

	require.NoError(t, s.Assign("d1", 91.5, SourceAutomatic))
	assert.True(t, s.IsAssigned())
	assert.Equal(t, ShiftAssigned, s.State)

	require.NoError(t, s.Unassign())
	assert.False(t, s.IsAssigned())
	assert.Equal(t, ShiftPending, s.State)
}

func TestShiftOverlaps(t *testing.T) {
	base := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	a := &Shift{Start: base.Add(6 * time.Hour), End: base.Add(10 * time.Hour)}
	b := &Shift{Start: base.Add(10 * time.Hour), End: base.Add(14 * time.Hour)}
	c := &Shift{Start: base.Add(9 * time.Hour), End: base.Add(11 * time.Hour)}

	assert.False(t, a.Overlaps(b), "touching intervals do not overlap")
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}

func TestSlotOf(t *testing.T) {
	base := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, SlotMadrugada, SlotOf(base.Add(5*time.Hour+59*time.Minute)))
	assert.Equal(t, SlotManana, SlotOf(base.Add(6*time.Hour)))
	assert.Equal(t, SlotTarde, SlotOf(base.Add(14*time.Hour)))
	assert.Equal(t, SlotNoche, SlotOf(base.Add(18*time.Hour)))
}

func TestScheduleAdvance(t *testing.T) {
	s := &Schedule{ID: "p1", State: ScheduleDraft}

	require.NoError(t, s.Advance(ScheduleGenerated))
	assert.ErrorIs(t, s.Advance(ScheduleFinalized), ErrInvalidTransition)
	require.NoError(t, s.Advance(ScheduleApproved))
	require.NoError(t, s.Advance(ScheduleFinalized))
	assert.ErrorIs(t, s.Advance(ScheduleDraft), ErrInvalidTransition)
}

func TestValidationTransitions(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		from    ValidationStatus
		to      ValidationStatus
		note    string
		wantErr error
	}{
		{"pending to review", ValidationPending, ValidationInReview, "", nil},
		{"pending to rejected", ValidationPending, ValidationRejected, "", nil},
		{"pending to resolved with note", ValidationPending, ValidationResolved, "rest confirmed", nil},
		{"pending to resolved without note", ValidationPending, ValidationResolved, "  ", ErrResolutionNoteRequired},
		{"review to resolved", ValidationInReview, ValidationResolved, "ok", nil},
		{"rejected reopens", ValidationRejected, ValidationPending, "", nil},
		{"resolved is terminal", ValidationResolved, ValidationPending, "", ErrInvalidTransition},
		{"rejected cannot resolve", ValidationRejected, ValidationResolved, "ok", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Validation{ID: "v1", Status: tt.from}
			err := v.TransitionTo(tt.to, tt.note, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, v.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, v.Status)
			if tt.to == ValidationResolved {
				assert.Equal(t, tt.note, v.ResolutionNote)
			}
		})
	}
}

func TestNewPayload(t *testing.T) {
	p, err := NewPayload("horas_acumuladas", 14.5, "salidas", 1, "hora_fin", "08:30")
	require.NoError(t, err)

	v, ok := p.Float("salidas")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, err = NewPayload("bad", time.Now())
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewPayload("odd")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParametersWithOverrides(t *testing.T) {
	p, err := DefaultParameters().WithOverrides(map[string]string{
		ParamMaxConsecutiveDays: "5",
		ParamMinRestHours:       "10.5",
		"unrelated_key":         "x",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, p.MaxConsecutiveDays)
	assert.Equal(t, 10.5, p.MinRestHours)
	assert.Equal(t, 80.0, p.MinEfficiency)

	_, err = DefaultParameters().WithOverrides(map[string]string{ParamMinEfficiency: "eighty"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "malformed parameter")
}

func TestDiffDriver(t *testing.T) {
	before := Driver{ID: "d1", State: DriverAvailable, ConsecutiveDaysWorked: 4, Efficiency: 90, LicenseValid: true}
	after := before
	after.State = DriverPhysicalRest
	after.ConsecutiveDaysWorked = 0
	after.LicenseValid = false

	changes := DiffDriver(before, after)
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeState, changes[0].Kind)
	assert.Equal(t, DriverPhysicalRest, changes[0].After)
	assert.Equal(t, ChangeCounterReset, changes[1].Kind)
	assert.Equal(t, ChangeLicense, changes[2].Kind)

	assert.Empty(t, DiffDriver(before, before))
}
