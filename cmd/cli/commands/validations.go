package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/core/services"
	"github.com/sipat/crew-scheduler/pkg/db"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

// ListValidationsCmd creates the listValidations command
func ListValidationsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listValidations",
		Short: "List validation findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			driverID, _ := cmd.Flags().GetString("driver")
			scheduleID, _ := cmd.Flags().GetString("schedule")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := db.ValidationFilter{
				Status:     model.ValidationStatus(strings.ToUpper(status)),
				DriverID:   driverID,
				ScheduleID: scheduleID,
				Limit:      limit,
			}

			review := services.NewValidationReview(app.Database, app.Publisher, app.Logger)
			validations, err := review.List(app.Ctx, filter)
			if err != nil {
				return err
			}

			if len(validations) == 0 {
				fmt.Println("No validations found.")
				return nil
			}

			fmt.Printf("\nFound %d validations:\n\n", len(validations))
			for _, v := range validations {
				fmt.Println(formatValidation(v, true))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("status", "", "Filter by status (PENDING, IN_REVIEW, RESOLVED, REJECTED)")
	cmd.Flags().String("driver", "", "Filter by driver ID")
	cmd.Flags().String("schedule", "", "Filter by schedule ID")
	cmd.Flags().Int("limit", 50, "Maximum number of validations to show")

	return cmd
}

// ReviewValidationCmd creates the reviewValidation command
func ReviewValidationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reviewValidation <validation_id>",
		Short: "Take a pending validation into review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			review := services.NewValidationReview(app.Database, app.Publisher, app.Logger)
			v, err := review.Review(app.Ctx, args[0])
			return printTransition(v, err)
		},
	}
}

// ResolveValidationCmd creates the resolveValidation command
func ResolveValidationCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolveValidation <validation_id>",
		Short: "Resolve a validation with a note explaining the action taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")
			app.Logger.Debug("resolveValidation command", zap.String("validation_id", args[0]))

			review := services.NewValidationReview(app.Database, app.Publisher, app.Logger)
			v, err := review.Resolve(app.Ctx, args[0], note)
			return printTransition(v, err)
		},
	}

	cmd.Flags().String("note", "", "Resolution note (required)")
	cmd.MarkFlagRequired("note")

	return cmd
}

// RejectValidationCmd creates the rejectValidation command
func RejectValidationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rejectValidation <validation_id>",
		Short: "Dismiss a validation as not applicable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			review := services.NewValidationReview(app.Database, app.Publisher, app.Logger)
			v, err := review.Reject(app.Ctx, args[0])
			return printTransition(v, err)
		},
	}
}

// ReopenValidationCmd creates the reopenValidation command
func ReopenValidationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopenValidation <validation_id>",
		Short: "Return a rejected validation to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			review := services.NewValidationReview(app.Database, app.Publisher, app.Logger)
			v, err := review.Reopen(app.Ctx, args[0])
			return printTransition(v, err)
		},
	}
}

func printTransition(v *model.Validation, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("\n✓ Validation %s is now %s\n\n", v.ID, v.Status)
	fmt.Println(formatValidation(*v, false))
	fmt.Println()
	return nil
}

// formatValidation renders a validation as a single line, colored by severity when color is set
func formatValidation(v model.Validation, color bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-9s %-10s %-32s", v.Severity, v.Status, v.Type)
	if v.DriverID != nil {
		fmt.Fprintf(&b, " driver=%s", *v.DriverID)
	}
	if v.ShiftID != nil {
		fmt.Fprintf(&b, " shift=%s", *v.ShiftID)
	}
	fmt.Fprintf(&b, " (%s)", v.ID)
	if v.Description != "" {
		fmt.Fprintf(&b, "\n          %s", v.Description)
	}
	if v.ResolutionNote != "" {
		fmt.Fprintf(&b, "\n          Note: %s", v.ResolutionNote)
	}

	line := b.String()
	if !color {
		return line
	}
	switch {
	case !v.Status.IsOpen():
		return colorDim + line + colorReset
	case v.Severity == model.SeverityCritical:
		return colorRed + line + colorReset
	case v.Severity == model.SeverityWarning:
		return colorYellow + line + colorReset
	}
	return line
}
