package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/spf13/cobra"
)

var homeCmd = &cobra.Command{
	Use:   "home [file|-]",
	Short: "Show or replace the home metadata document",
	Long: `Without arguments, print the home metadata (address, floor plan notes and
other free-form fields) as JSON. With a file, replace it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runHome),
}

func init() {
	rootCmd.AddCommand(homeCmd)
}

func runHome(app *appctx.App, cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		raw = bytes.TrimSpace(raw)
		if err := app.Planner.SetHome(raw); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Home metadata updated")
		return nil
	}

	raw, err := app.Planner.Home()
	if err != nil {
		return err
	}
	if raw == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "{}")
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = cmd.OutOrStdout().Write(out.Bytes())
	return err
}
