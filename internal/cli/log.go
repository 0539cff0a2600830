package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/events"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show recent changes from the event log",
	Long: `Show event log entries, newest first. With a record id only
entries about that record are shown.

When more entries remain, a cursor for the next page is printed to stderr.
Pass it back with --cursor to continue.
`,
	Args: cobra.MaximumNArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runLog),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream change events as they are written",
	Long: `Print new event log entries until interrupted. Changes made by other
homeplan processes show up within one poll interval.

Examples:
  homeplan watch                 # follow from now
  homeplan watch --since 0       # replay everything, then follow
  homeplan watch --ndjson        # one JSON event per line
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runWatch),
}

var (
	logLimit      int
	logCursor     string
	watchSince    int64
	watchNDJSON   bool
	watchInterval time.Duration
)

func init() {
	rootCmd.AddCommand(logCmd, watchCmd)

	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Number of events")
	logCmd.Flags().StringVar(&logCursor, "cursor", "", "Continue from a cursor printed by a previous page")
	watchCmd.Flags().Int64Var(&watchSince, "since", -1, "Start after this event id (-1 = only new events)")
	watchCmd.Flags().BoolVar(&watchNDJSON, "ndjson", false, "Output as newline-delimited JSON")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Poll interval")
}

func runLog(app *appctx.App, cmd *cobra.Command, args []string) error {
	var resource string
	if len(args) == 1 {
		_, recordID, err := resolveRecord(app.Planner, args[0])
		if err != nil {
			return err
		}
		resource = recordID
	}
	evts, next, err := app.Planner.HistoryPage(resource, logCursor, logLimit)
	if err != nil {
		return err
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	err = r.Render(evts, func() render.Table {
		t := render.Table{Headers: []string{"ID", "TIME", "ACTOR", "EVENT", "RESOURCE"}}
		for _, e := range evts {
			t.Rows = append(t.Rows, []string{fmt.Sprint(e.ID), e.Timestamp, e.Actor, e.EventType, deref(e.ResourceID)})
		}
		return t
	})
	if err != nil {
		return err
	}
	if next != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "next_cursor: %s\n", next)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runWatch(app *appctx.App, cmd *cobra.Command, args []string) error {
	after := watchSince
	if after < 0 {
		latest, err := app.Planner.History(1)
		if err != nil {
			return err
		}
		after = 0
		if len(latest) > 0 {
			after = latest[0].ID
		}
	}
	return watchEvents(cmd.Context(), app.Planner, after, watchInterval, cmd.OutOrStdout(), watchNDJSON)
}

// watchEvents polls the event log until ctx is done.
func watchEvents(ctx context.Context, p *planner.Planner, after int64, interval time.Duration, w io.Writer, ndjson bool) error {
	encoder := json.NewEncoder(w)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for {
			evts, err := p.EventsSince(after, 100)
			if err != nil {
				return err
			}
			for _, e := range evts {
				if err := printEvent(w, encoder, e, ndjson); err != nil {
					return err
				}
				after = e.ID
			}
			if len(evts) < 100 {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printEvent(w io.Writer, encoder *json.Encoder, e events.Event, ndjson bool) error {
	if ndjson {
		return encoder.Encode(e)
	}
	_, err := fmt.Fprintf(w, "[%d] %s %s %s %s\n", e.ID, e.Timestamp, e.Actor, e.EventType, deref(e.ResourceID))
	return err
}
