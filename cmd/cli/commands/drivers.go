package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/services"
)

// CompleteShiftCmd creates the completeShift command
func CompleteShiftCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completeShift <shift_id>",
		Short: "Record the actual times of a worked shift and update its driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")

			loc := app.Cfg.Location()
			start, err := parseTimestamp(startStr, loc)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := parseTimestamp(endStr, loc)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			lifecycle, err := newDriverLifecycle(app)
			if err != nil {
				return err
			}

			app.Logger.Debug("completeShift command",
				zap.String("shift_id", args[0]),
				zap.Time("start", start),
				zap.Time("end", end))

			result, err := lifecycle.CompleteShift(app.Ctx, args[0], start, end)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Shift %s completed\n\n", result.Shift.ID)
			fmt.Printf("Driver:              %s (%s)\n", result.Driver.FullName, result.Driver.ID)
			fmt.Printf("Realized efficiency: %.1f\n", result.RealizedEfficiency)
			fmt.Printf("Rolling efficiency:  %.1f\n", result.Driver.Efficiency)
			fmt.Printf("Consecutive days:    %d\n\n", result.Driver.ConsecutiveDaysWorked)

			for _, f := range result.Findings {
				fmt.Printf("%s⚠️  %s%s\n", colorRed, f.Description, colorReset)
			}
			if len(result.Findings) > 0 {
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().String("start", "", "Actual start (RFC3339 or \"YYYY-MM-DD HH:MM\")")
	cmd.Flags().String("end", "", "Actual end (RFC3339 or \"YYYY-MM-DD HH:MM\")")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

// SetDriverStateCmd creates the setDriverState command
func SetDriverStateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setDriverState <driver_id> <state>",
		Short: "Move a driver to a new state (AVAILABLE, PHYSICAL_REST, WEEKLY_REST, VACATION, SUSPENDED, INACTIVE)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseDriverState(args[1])
			if err != nil {
				return err
			}

			lifecycle, err := newDriverLifecycle(app)
			if err != nil {
				return err
			}

			driver, err := lifecycle.SetDriverState(app.Ctx, args[0], state)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Driver %s (%s) is now %s\n", driver.FullName, driver.ID, driver.State)
			fmt.Printf("Consecutive days: %d\n\n", driver.ConsecutiveDaysWorked)
			return nil
		},
	}
}

func newDriverLifecycle(app *AppContext) (*services.DriverLifecycle, error) {
	params, err := services.LoadParameters(app.Ctx, app.Database, app.Cfg)
	if err != nil {
		return nil, err
	}
	return services.NewDriverLifecycle(app.Database, app.Publisher, params, app.Logger), nil
}

// parseTimestamp accepts RFC3339 or "YYYY-MM-DD HH:MM" in loc
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD HH:MM, got: %q", value)
	}
	return t, nil
}

func parseDriverState(value string) (model.DriverState, error) {
	state := model.DriverState(strings.ToUpper(strings.TrimSpace(value)))
	if !state.IsValid() {
		return "", fmt.Errorf("unknown driver state: %s", value)
	}
	return state, nil
}
