package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/repair"
	"github.com/sipat/crew-scheduler/pkg/core/services"
)

// GenerateScheduleCmd creates the generateSchedule command
func GenerateScheduleCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generateSchedule",
		Short: "Generate the driver schedule for a service date (defaults to tomorrow)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			repairStrategy, _ := cmd.Flags().GetString("repair")
			runTypeStr, _ := cmd.Flags().GetString("run-type")

			target, err := parseServiceDate(dateStr, app.Cfg.Location())
			if err != nil {
				return err
			}

			runType, err := parseRunType(runTypeStr)
			if err != nil {
				return err
			}

			opts := services.GenerateOptions{
				TargetDate: target,
				DryRun:     dryRun,
				RunType:    runType,
			}
			if repairStrategy != "" {
				opts.Resolver, err = repair.NewResolver(repairStrategy)
				if err != nil {
					return err
				}
			}

			app.Logger.Debug("generateSchedule command",
				zap.String("date", dateStr),
				zap.Bool("dry_run", dryRun),
				zap.String("repair", repairStrategy),
				zap.String("run_type", string(runType)))

			summary, err := services.GenerateSchedule(app.Ctx, app.Database, app.Publisher, app.Locker, app.Cfg, app.Logger, opts)
			if err != nil {
				var runErr *services.RunError
				if errors.As(err, &runErr) {
					fmt.Printf("\n✗ Scheduling run %s failed at stage %q\n", runErr.RunID, runErr.Stage)
					fmt.Printf("  Roster: %d  Eligible: %d  Operable: %d\n\n",
						runErr.Metrics.RosterSize, runErr.Metrics.Eligible, runErr.Metrics.Operable)
				}
				return err
			}

			printRunSummary(summary)
			return nil
		},
	}

	cmd.Flags().String("date", "", "Service date (YYYY-MM-DD), defaults to tomorrow")
	cmd.Flags().Bool("dry-run", false, "Run every stage and roll back instead of saving")
	cmd.Flags().String("repair", "", "Repair strategy (review, unassign), defaults to config")
	cmd.Flags().String("run-type", string(model.RunAutomatic), "Run type (AUTOMATIC, MANUAL, EMERGENCY)")

	return cmd
}

func printRunSummary(summary *model.RunSummary) {
	if summary.DryRun {
		fmt.Printf("\n✓ Dry run completed, nothing was saved\n\n")
	} else {
		fmt.Printf("\n✓ Schedule generated successfully!\n\n")
	}

	m := summary.Metrics
	fmt.Printf("Schedule ID:  %s\n", summary.ScheduleID)
	fmt.Printf("Service Date: %s\n", summary.ServiceDate.Format("2006-01-02 (Monday)"))
	fmt.Printf("Shifts:       %d/%d assigned (%d general, %d specialized)\n",
		summary.AssignedShifts, summary.TotalShifts, m.AssignedGeneral, m.AssignedSpecialized)
	fmt.Printf("Drivers:      %d distinct (%d eligible, %d operable of %d)\n",
		summary.DistinctDrivers, m.Eligible, m.Operable, m.RosterSize)
	fmt.Printf("Validations:  %d (%d critical, %d repair iterations)\n",
		summary.ValidationCount, m.CriticalValidations, m.RepairIterations)
	fmt.Printf("Elapsed:      %s\n\n", summary.Elapsed.Round(time.Millisecond))

	if summary.UnresolvedCritical > 0 {
		fmt.Printf("⚠️  %d critical validations need review (run listValidations --status IN_REVIEW)\n\n", summary.UnresolvedCritical)
	}
}

// parseServiceDate parses a YYYY-MM-DD date in loc. An empty string returns the zero time.
func parseServiceDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format, got: %s", value)
	}
	return date, nil
}

func parseRunType(value string) (model.RunType, error) {
	runType := model.RunType(strings.ToUpper(value))
	switch runType {
	case model.RunAutomatic, model.RunManual, model.RunEmergency:
		return runType, nil
	}
	return "", fmt.Errorf("run type must be one of AUTOMATIC, MANUAL, EMERGENCY, got: %s", value)
}
