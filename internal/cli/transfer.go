package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lherron/homeplan/internal/bundle"
	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/diff"
	"github.com/lherron/homeplan/internal/merge"
	"github.com/lherron/homeplan/internal/parse"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or upgrade the local database",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.Initializing(), runInit),
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the local state as a bundle",
	Long: `Write every record, tombstones included, together with attachment lists
and home metadata as a current-version bundle. Without a file the bundle
goes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runExport),
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Merge or replace local data with a bundle",
	Long: `Import a bundle of any recognized shape (current, older versioned, or
legacy flat lists).

In merge mode records are matched by id, then remote id, then name.
Incoming values never overwrite fields edited locally since the last
verification, and records with local edits are not deleted by incoming
tombstones. In replace mode local data is cleared first.

Authorship is read from the bundle's export metadata unless --ai or
--human is given; AI-authored changes are marked for review.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runImport),
}

var diffCmd = &cobra.Command{
	Use:   "diff <file|->",
	Short: "Show what importing a bundle would change",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runDiff),
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a file is an importable bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all local data and attachment files",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runReset),
}

var (
	importMode   string
	importAI     bool
	importHuman  bool
	importDryRun bool
	resetYes     bool
)

func init() {
	rootCmd.AddCommand(initCmd, exportCmd, importCmd, diffCmd, validateCmd, resetCmd)

	for _, c := range []*cobra.Command{importCmd, diffCmd} {
		c.Flags().StringVar(&importMode, "mode", "merge", "Import mode: merge or replace")
		c.Flags().BoolVar(&importAI, "ai", false, "Treat the bundle as AI-authored")
		c.Flags().BoolVar(&importHuman, "human", false, "Treat the bundle as human-authored")
	}
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Report the outcome without writing")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm deleting all local data")
}

func runInit(app *appctx.App, cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", app.DB.Path())
	return nil
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	b, err := app.Planner.ExportBundle()
	if err != nil {
		return err
	}
	if len(args) == 1 && args[0] != "-" {
		if err := b.WriteFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rooms, %d items, %d options to %s\n",
			len(b.Rooms), len(b.Items), len(b.Options), args[0])
		return nil
	}
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// readInput reads a JSON or YAML document from a file or stdin ("-") and
// returns it as JSON. The file extension picks the format when it names one.
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	var (
		data   []byte
		err    error
		format string
	)
	if arg == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".json":
			format = string(parse.FormatJSON)
		case ".yaml", ".yml":
			format = string(parse.FormatYAML)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	out, err := parse.ToJSON(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", arg, err)
	}
	return out, nil
}

func importOptions(dryRun bool) (planner.ImportOptions, error) {
	mode, err := merge.ParseMode(importMode)
	if err != nil {
		return planner.ImportOptions{}, err
	}
	opts := planner.ImportOptions{Mode: mode, DryRun: dryRun}
	switch {
	case importAI && importHuman:
		return opts, errors.New("--ai and --human are mutually exclusive")
	case importAI:
		ai := true
		opts.AIAuthored = &ai
	case importHuman:
		ai := false
		opts.AIAuthored = &ai
	}
	return opts, nil
}

func runImport(app *appctx.App, cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	opts, err := importOptions(importDryRun)
	if err != nil {
		return err
	}
	res, err := app.Planner.ImportBundle(raw, opts)
	if err != nil {
		return err
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	summary := res.Summary()
	summary["session"] = res.SessionID
	summary["dryRun"] = opts.DryRun
	if len(res.Warnings) > 0 {
		summary["warningList"] = res.Warnings
	}
	return r.Render(summary, func() render.Table {
		t := render.Table{Headers: []string{"MODE", "ACTOR", "INSERTED", "UPDATED", "SKIPPED", "WARNINGS"}}
		t.Rows = append(t.Rows, []string{
			string(res.Mode), string(res.Actor),
			fmt.Sprint(res.Count(merge.OpInsert)), fmt.Sprint(res.Count(merge.OpUpdate)),
			fmt.Sprint(res.Count(merge.OpSkip)), fmt.Sprint(len(res.Warnings)),
		})
		for _, w := range res.Warnings {
			t.Rows = append(t.Rows, []string{"warning", w})
		}
		return t
	})
}

func runDiff(app *appctx.App, cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	opts, err := importOptions(true)
	if err != nil {
		return err
	}
	res, err := app.Planner.ImportBundle(raw, opts)
	if err != nil {
		return err
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	if r.Format() != render.FormatTable {
		return r.Render(res.Changes, nil)
	}
	w := cmd.OutOrStdout()
	for _, c := range res.Changes {
		label := kindLabel(c.Kind) + " " + c.ID
		switch c.Op {
		case merge.OpInsert:
			fmt.Fprintf(w, "+ %s\n", label)
		case merge.OpUpdate:
			fmt.Fprintf(w, "~ %s\n", label)
			fmt.Fprint(w, indent(diff.Render(label, c.Changes)))
		}
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "! %s\n", warning)
	}
	fmt.Fprintf(w, "%d to insert, %d to update, %d unchanged or kept\n",
		res.Count(merge.OpInsert), res.Count(merge.OpUpdate), res.Count(merge.OpSkip))
	return nil
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString("    " + l)
		}
	}
	return b.String()
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	g, err := bundle.Normalize(raw)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s bundle (version %d): %d rooms, %d measurements, %d items, %d options, %d stores\n",
		g.Shape, g.Version, len(g.Rooms), len(g.Measurements), len(g.Items), len(g.Options), len(g.Stores))
	for _, warning := range g.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func runReset(app *appctx.App, cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("reset deletes all local records and attachment files; pass --yes to confirm")
	}
	if err := app.Planner.ResetLocal(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Local data deleted")
	return nil
}
