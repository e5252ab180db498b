package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// AuthorizeCommand is the name of the authorize command
const AuthorizeCommand = "authorize"

// AuthorizeCmd creates the authorize command. The browser flow itself runs while the app is
// initialized; the command reports the result.
func AuthorizeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   AuthorizeCommand,
		Short: "Authorize the Gmail and Sheets notifiers",
		Long: `Run the browser OAuth flow and store a token for the environment. The worker never
prompts, so run this once per environment before starting it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Cfg.NeedsOAuth() {
				return errors.New("no gmail or sheets notifications configured, nothing to authorize")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notifications authorized for env %s\n", app.Env)
			return nil
		},
	}
}
