package model

// ChangeKind names a significant change between two versions of a driver
type ChangeKind string

const (
	ChangeState            ChangeKind = "state"
	ChangeCounterReset     ChangeKind = "consecutive_days_reset"
	ChangeCounterIncrement ChangeKind = "consecutive_days_increment"
	ChangeEfficiency       ChangeKind = "efficiency"
	ChangePunctuality      ChangeKind = "punctuality"
	ChangeLicense          ChangeKind = "license"
	ChangeNightAuth        ChangeKind = "night_authorization"
)

// DriverChange is one detected difference between a before and after driver
type DriverChange struct {
	Kind   ChangeKind
	Before any
	After  any
}

// DiffDriver compares two versions of the same driver and returns the significant changes.
// Handlers consume the list instead of inspecting live driver state.
func DiffDriver(before, after Driver) []DriverChange {
	var changes []DriverChange

	if before.State != after.State {
		changes = append(changes, DriverChange{Kind: ChangeState, Before: before.State, After: after.State})
	}

	switch {
	case after.ConsecutiveDaysWorked == 0 && before.ConsecutiveDaysWorked > 0:
		changes = append(changes, DriverChange{Kind: ChangeCounterReset, Before: before.ConsecutiveDaysWorked, After: 0})
	case after.ConsecutiveDaysWorked > before.ConsecutiveDaysWorked:
		changes = append(changes, DriverChange{Kind: ChangeCounterIncrement, Before: before.ConsecutiveDaysWorked, After: after.ConsecutiveDaysWorked})
	}

	if before.Efficiency != after.Efficiency {
		changes = append(changes, DriverChange{Kind: ChangeEfficiency, Before: before.Efficiency, After: after.Efficiency})
	}
	if before.Punctuality != after.Punctuality {
		changes = append(changes, DriverChange{Kind: ChangePunctuality, Before: before.Punctuality, After: after.Punctuality})
	}
	if before.LicenseValid != after.LicenseValid {
		changes = append(changes, DriverChange{Kind: ChangeLicense, Before: before.LicenseValid, After: after.LicenseValid})
	}
	if before.NightAuthorized != after.NightAuthorized {
		changes = append(changes, DriverChange{Kind: ChangeNightAuth, Before: before.NightAuthorized, After: after.NightAuthorized})
	}

	return changes
}
