package cli

import (
	"fmt"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach <id> <file|->",
	Short: "Attach a file to a record",
	Long: `Copy a file into the attachment directory and link it to a record. Use -
to read from stdin together with --name.`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runAttach),
}

var attachmentsCmd = &cobra.Command{
	Use:   "attachments <id>",
	Short: "List the attachments of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runAttachments),
}

var attachName string

func init() {
	rootCmd.AddCommand(attachCmd, attachmentsCmd)
	attachCmd.Flags().StringVar(&attachName, "name", "", "Stored file name (required for stdin)")
}

func runAttach(app *appctx.App, cmd *cobra.Command, args []string) error {
	kind, recordID, err := resolveRecord(app.Planner, args[0])
	if err != nil {
		return err
	}
	a, err := app.Planner.AttachFile(kind, recordID, args[1], attachName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%d bytes) as %s\n", a.Name, a.Size, a.URL)
	return nil
}

func runAttachments(app *appctx.App, cmd *cobra.Command, args []string) error {
	kind, recordID, err := resolveRecord(app.Planner, args[0])
	if err != nil {
		return err
	}
	files, err := app.Planner.ListAttachments(kind, recordID)
	if err != nil {
		return err
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(files, func() render.Table {
		t := render.Table{Headers: []string{"ID", "NAME", "MIME", "SIZE", "URL"}}
		for _, f := range files {
			t.Rows = append(t.Rows, []string{f.ID, f.Name, f.Mime, fmt.Sprint(f.Size), f.URL})
		}
		return t
	})
}
