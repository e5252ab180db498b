package sheetsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/sipat/crew-scheduler/internal/config"
	"github.com/sipat/crew-scheduler/pkg/core/model"
)

const (
	DefaultRunsTab   = "Runs"
	DefaultAlertsTab = "Alerts"
)

var (
	runsHeader = []interface{}{
		"Logged at", "Run", "Schedule", "Service date", "Dry run", "Shifts", "Assigned",
		"Drivers", "Validations", "Unresolved critical", "Repair iterations", "Elapsed (ms)",
	}
	alertsHeader = []interface{}{
		"Run", "Schedule", "Service date", "Validation", "Type", "Driver", "Shift", "Description",
	}
)

type appender interface {
	AppendRows(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error
}

// RunLog appends one row per scheduling run, and one row per unresolved critical validation,
// to a spreadsheet the operations team reviews
type RunLog struct {
	sheets        appender
	spreadsheetID string
	runsTab       string
	alertsTab     string
	now           func() time.Time
}

// NewRunLog creates the run log and makes sure both of its tabs exist
func NewRunLog(ctx context.Context, client *Client, cfg *config.SheetsConfig) (*RunLog, error) {
	log := &RunLog{
		sheets:        client,
		spreadsheetID: cfg.SpreadsheetID,
		runsTab:       cfg.RunsTab,
		alertsTab:     cfg.AlertsTab,
		now:           time.Now,
	}
	if log.runsTab == "" {
		log.runsTab = DefaultRunsTab
	}
	if log.alertsTab == "" {
		log.alertsTab = DefaultAlertsTab
	}

	if err := client.EnsureTab(ctx, cfg.SpreadsheetID, log.runsTab, runsHeader); err != nil {
		return nil, err
	}
	if err := client.EnsureTab(ctx, cfg.SpreadsheetID, log.alertsTab, alertsHeader); err != nil {
		return nil, err
	}
	return log, nil
}

func (l *RunLog) Name() string { return "sheets" }

func (l *RunLog) NotifyRunSummary(ctx context.Context, summary model.RunSummary) error {
	row := runRow(summary, l.now())
	return l.sheets.AppendRows(ctx, l.spreadsheetID, l.runsTab+"!A:L", [][]interface{}{row})
}

func (l *RunLog) NotifyCriticalAlert(ctx context.Context, alert model.CriticalAlert) error {
	rows := alertRows(alert)
	if len(rows) == 0 {
		return nil
	}
	if err := l.sheets.AppendRows(ctx, l.spreadsheetID, l.alertsTab+"!A:H", rows); err != nil {
		return fmt.Errorf("failed to log %d critical validations: %w", len(rows), err)
	}
	return nil
}

func runRow(s model.RunSummary, loggedAt time.Time) []interface{} {
	return []interface{}{
		loggedAt.Format(time.RFC3339),
		s.RunID,
		s.ScheduleID,
		s.ServiceDate.Format("2006-01-02"),
		s.DryRun,
		s.TotalShifts,
		s.AssignedShifts,
		s.DistinctDrivers,
		s.ValidationCount,
		s.UnresolvedCritical,
		s.Metrics.RepairIterations,
		s.Elapsed.Milliseconds(),
	}
}

func alertRows(a model.CriticalAlert) [][]interface{} {
	date := a.ServiceDate.Format("2006-01-02")
	rows := make([][]interface{}, 0, len(a.Validations))
	for _, v := range a.Validations {
		rows = append(rows, []interface{}{
			a.RunID, a.ScheduleID, date, v.ID, string(v.Type), orEmpty(v.DriverID), orEmpty(v.ShiftID), v.Description,
		})
	}
	return rows
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
