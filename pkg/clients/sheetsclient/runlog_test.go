package sheetsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

type appendCall struct {
	spreadsheetID string
	sheetRange    string
	values        [][]interface{}
}

type mockAppender struct {
	calls []appendCall
}

func (m *mockAppender) AppendRows(ctx context.Context, spreadsheetID, sheetRange string, values [][]interface{}) error {
	m.calls = append(m.calls, appendCall{spreadsheetID, sheetRange, values})
	return nil
}

func newTestRunLog(m *mockAppender) *RunLog {
	return &RunLog{
		sheets:        m,
		spreadsheetID: "sheet123",
		runsTab:       DefaultRunsTab,
		alertsTab:     DefaultAlertsTab,
		now:           func() time.Time { return time.Date(2026, 6, 9, 18, 0, 0, 0, time.UTC) },
	}
}

func TestRunLog_RunSummaryRow(t *testing.T) {
	m := &mockAppender{}
	log := newTestRunLog(m)

	err := log.NotifyRunSummary(context.Background(), model.RunSummary{
		RunID:              "run-1",
		ScheduleID:         "sch-1",
		ServiceDate:        time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		TotalShifts:        14,
		AssignedShifts:     12,
		DistinctDrivers:    11,
		ValidationCount:    3,
		UnresolvedCritical: 1,
		Elapsed:            2 * time.Second,
		Metrics:            model.RunMetrics{RepairIterations: 3},
	})
	require.NoError(t, err)

	require.Len(t, m.calls, 1)
	assert.Equal(t, "sheet123", m.calls[0].spreadsheetID)
	assert.Equal(t, "Runs!A:L", m.calls[0].sheetRange)
	assert.Equal(t, [][]interface{}{{
		"2026-06-09T18:00:00Z", "run-1", "sch-1", "2026-06-10", false, 14, 12, 11, 3, 1, 3, int64(2000),
	}}, m.calls[0].values)
	assert.Len(t, m.calls[0].values[0], len(runsHeader))
}

func TestRunLog_CriticalAlertRows(t *testing.T) {
	m := &mockAppender{}
	log := newTestRunLog(m)
	driver := "D1"

	err := log.NotifyCriticalAlert(context.Background(), model.CriticalAlert{
		RunID:       "run-1",
		ScheduleID:  "sch-1",
		ServiceDate: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		Validations: []model.Validation{
			{ID: "v-1", Type: model.ValidationInsufficientRest, DriverID: &driver, Description: "rest"},
			{ID: "v-2", Type: model.ValidationScheduleOverlap, Description: "overlap"},
		},
	})
	require.NoError(t, err)

	require.Len(t, m.calls, 1)
	assert.Equal(t, "Alerts!A:H", m.calls[0].sheetRange)
	require.Len(t, m.calls[0].values, 2)
	assert.Equal(t, []interface{}{"run-1", "sch-1", "2026-06-10", "v-1", "insufficient_rest_early_return", "D1", "", "rest"}, m.calls[0].values[0])
	assert.Equal(t, "", m.calls[0].values[1][5])
	assert.Len(t, m.calls[0].values[0], len(alertsHeader))
}

func TestRunLog_NoAlertRowsWithoutFindings(t *testing.T) {
	m := &mockAppender{}
	log := newTestRunLog(m)

	require.NoError(t, log.NotifyCriticalAlert(context.Background(), model.CriticalAlert{RunID: "run-1"}))
	assert.Empty(t, m.calls)
}
