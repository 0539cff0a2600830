package cli

import (
	"errors"
	"fmt"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch records from the remote table",
	Long: `Fetch the remote records and merge them into the local store. Records
with unpushed local edits keep their local values.`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runPull),
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send local edits and deletions to the remote table",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runPush),
}

func init() {
	rootCmd.AddCommand(pullCmd, pushCmd)
}

func remoteErr(err error) error {
	if errors.Is(err, planner.ErrNoRemote) {
		return fmt.Errorf("%w: set HOMEPLAN_REMOTE_FILE or pass --remote-file", err)
	}
	return err
}

func runPull(app *appctx.App, cmd *cobra.Command, args []string) error {
	res, err := app.Planner.Pull(cmd.Context())
	if err != nil {
		return remoteErr(err)
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(res, func() render.Table {
		t := render.Table{Headers: []string{"RECORDS", "INSERTED", "UPDATED", "UNCHANGED", "KEPT LOCAL", "REFETCHED"}}
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(res.Records), fmt.Sprint(res.Inserted), fmt.Sprint(res.Updated),
			fmt.Sprint(res.Unchanged), fmt.Sprint(res.KeptLocal), fmt.Sprint(res.Refetched),
		})
		for _, c := range res.Conflicts {
			t.Rows = append(t.Rows, []string{"conflict", c})
		}
		for _, w := range res.Warnings {
			t.Rows = append(t.Rows, []string{"warning", w})
		}
		return t
	})
}

func runPush(app *appctx.App, cmd *cobra.Command, args []string) error {
	res, err := app.Planner.Push(cmd.Context())
	if err != nil {
		return remoteErr(err)
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(res, func() render.Table {
		t := render.Table{Headers: []string{"SENT", "ACKED", "UNMATCHED"}}
		t.Rows = append(t.Rows, []string{fmt.Sprint(res.Sent), fmt.Sprint(res.Acked), fmt.Sprint(len(res.Unmatched))})
		return t
	})
}
