package planner

import (
	"fmt"
	"time"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

var target = time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC) // Wednesday

// newDriver returns an operable driver hired two years before the target date
func newDriver(id string) model.Driver {
	return model.Driver{
		ID:                 id,
		Code:               id,
		FullName:           "Driver " + id,
		HireDate:           target.AddDate(-2, 0, 0),
		State:              model.DriverAvailable,
		Efficiency:         90,
		Punctuality:        90,
		AuthorizedServices: []string{model.ServiceStandard},
		LicenseValid:       true,
	}
}

func newDrivers(n int) []model.Driver {
	drivers := make([]model.Driver, n)
	for i := range drivers {
		drivers[i] = newDriver(fmt.Sprintf("d%d", i+1))
	}
	return drivers
}

func driverPtrs(drivers []model.Driver) []*model.Driver {
	ptrs := make([]*model.Driver, len(drivers))
	for i := range drivers {
		ptrs[i] = &drivers[i]
	}
	return ptrs
}

func route(driverID string, daysBefore int, kind model.RouteKind) model.RouteRecord {
	day := target.AddDate(0, 0, -daysBefore)
	return model.RouteRecord{
		DriverID: driverID,
		Date:     day,
		Start:    day.Add(6 * time.Hour),
		End:      day.Add(12 * time.Hour),
		Kind:     kind,
	}
}

func demand(index int, hour int) ShiftDemand {
	start := target.Add(time.Duration(hour) * time.Hour)
	return ShiftDemand{
		Index:       index,
		Code:        fmt.Sprintf("T%02d", hour),
		Date:        target,
		Start:       start,
		End:         start.Add(4 * time.Hour),
		ServiceType: model.ServiceStandard,
		RouteKind:   model.RouteLong,
	}
}
