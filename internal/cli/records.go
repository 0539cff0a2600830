package cli

import (
	"fmt"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/render"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <kind> key=value...",
	Short: "Create a room, measurement, item, option or store",
	Long: `Create a record. Fields use their bundle names; values that parse as JSON
(numbers, true/false, arrays, objects) are taken literally, anything else
as text. For items and measurements, room= accepts a room name or id.
Measurement lengths can be given as value= in the configured unit.

Examples:
  homeplan add room name="Living Room"
  homeplan add store name=IKEA shippingCost=49
  homeplan add item name=Sofa room="Living Room" price=1000 store=IKEA
  homeplan add option itemId=itm_... title="Linen sofa" price=900 --select
  homeplan add measurement room="Living Room" label="Window wall" value=144
`,
	Args: cobra.MinimumNArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runAdd),
}

var setCmd = &cobra.Command{
	Use:   "set <id> key=value...",
	Short: "Update fields of a record",
	Long: `Update fields of a live record. An empty value unsets a field.

Examples:
  homeplan set itm_... status=Ordered price=899
  homeplan set store_... discountType=percent discountValue=10
  homeplan set meas_... value=60 --unit cm
`,
	Args: cobra.MinimumNArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSet),
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete records",
	Long: `Delete records. Deleted records stay as tombstones until they are pushed.
Deleting an item deletes its options. A room that still holds items or
measurements needs --into to name the room that receives them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runRm),
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one record with its provenance",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runShow),
}

var (
	addSelect  bool
	rmInto     string
	rmContinue bool
)

func init() {
	rootCmd.AddCommand(addCmd, setCmd, rmCmd, showCmd)

	addCmd.Flags().BoolVar(&addSelect, "select", false, "Make a new option the item's selection")
	rmCmd.Flags().StringVar(&rmInto, "into", "", "Room (name or id) receiving the children of a deleted room")
	rmCmd.Flags().BoolVar(&rmContinue, "continue-on-error", false, "Keep deleting after a record fails")
}

func runAdd(app *appctx.App, cmd *cobra.Command, args []string) error {
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	as, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	p := app.Planner

	var created domain.Entity
	switch kind {
	case domain.KindRoom:
		var r domain.Room
		if err := apply(&r, as); err != nil {
			return err
		}
		created, err = p.CreateRoom(r)
	case domain.KindMeasurement:
		var m domain.Measurement
		if as, err = lengthAssignments(as, app.Unit); err != nil {
			return err
		}
		if err := apply(&m, as); err != nil {
			return err
		}
		if m.Room, err = resolveRoom(p, m.Room); err != nil {
			return err
		}
		created, err = p.CreateMeasurement(m)
	case domain.KindItem:
		var it domain.Item
		if err := apply(&it, as); err != nil {
			return err
		}
		if it.Room, err = resolveRoom(p, it.Room); err != nil {
			return err
		}
		created, err = p.CreateItem(it)
	case domain.KindOption:
		o := domain.Option{Selected: addSelect}
		if err := apply(&o, as); err != nil {
			return err
		}
		created, err = p.CreateOption(o)
	case domain.KindStore:
		var s domain.Store
		if err := apply(&s, as); err != nil {
			return err
		}
		created, err = p.CreateStore(s)
	}
	if err != nil {
		return err
	}
	return renderRecord(app, cmd, kind, created)
}

func runSet(app *appctx.App, cmd *cobra.Command, args []string) error {
	p := app.Planner
	kind, recordID, err := resolveRecord(p, args[0])
	if err != nil {
		return err
	}
	as, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	var updated domain.Entity
	switch kind {
	case domain.KindRoom:
		updated, err = p.UpdateRoom(recordID, func(r *domain.Room) error { return apply(r, as) })
	case domain.KindMeasurement:
		if as, err = lengthAssignments(as, app.Unit); err != nil {
			return err
		}
		updated, err = p.UpdateMeasurement(recordID, func(m *domain.Measurement) error {
			before := m.Room
			if err := apply(m, as); err != nil {
				return err
			}
			if m.Room != before {
				roomID, err := resolveRoom(p, m.Room)
				if err != nil {
					return err
				}
				m.Room = roomID
			}
			return nil
		})
	case domain.KindItem:
		updated, err = p.UpdateItem(recordID, func(it *domain.Item) error {
			before := it.Room
			if err := apply(it, as); err != nil {
				return err
			}
			if it.Room != before {
				roomID, err := resolveRoom(p, it.Room)
				if err != nil {
					return err
				}
				it.Room = roomID
			}
			return nil
		})
	case domain.KindOption:
		updated, err = p.UpdateOption(recordID, func(o *domain.Option) error { return apply(o, as) })
	case domain.KindStore:
		updated, err = p.UpdateStore(recordID, func(s *domain.Store) error { return apply(s, as) })
	}
	if err != nil {
		return err
	}
	return renderRecord(app, cmd, kind, updated)
}

func runRm(app *appctx.App, cmd *cobra.Command, args []string) error {
	p := app.Planner
	return eachRecord(cmd, args, rmContinue, func(arg string) error {
		kind, recordID, err := resolveRecord(p, arg)
		if err != nil {
			return err
		}
		if err := deleteRecord(p, kind, recordID, rmInto); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kindLabel(kind), recordID)
		return nil
	})
}

func deleteRecord(p *planner.Planner, kind domain.Kind, recordID, into string) error {
	switch kind {
	case domain.KindRoom:
		dest := ""
		if into != "" {
			var err error
			if dest, err = resolveRoom(p, into); err != nil {
				return err
			}
		}
		return p.DeleteRoom(recordID, dest)
	case domain.KindMeasurement:
		return p.DeleteMeasurement(recordID)
	case domain.KindItem:
		return p.DeleteItem(recordID)
	case domain.KindOption:
		return p.DeleteOption(recordID)
	default:
		return p.DeleteStore(recordID)
	}
}

func runShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	kind, recordID, err := resolveRecord(app.Planner, args[0])
	if err != nil {
		return err
	}
	snap, err := app.Planner.Snapshot()
	if err != nil {
		return err
	}
	for _, e := range snap.Entities(kind) {
		if e.Meta().ID == recordID {
			return renderRecord(app, cmd, kind, e)
		}
	}
	return fmt.Errorf("record %s: %w", recordID, domain.ErrNotFound)
}

// renderRecord prints a record as structured data, or a short summary in
// table mode.
func renderRecord(app *appctx.App, cmd *cobra.Command, kind domain.Kind, e domain.Entity) error {
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(e, func() render.Table {
		b := e.Meta()
		t := render.Table{Headers: []string{"FIELD", "VALUE"}}
		add := func(k, v string) {
			if v != "" {
				t.Rows = append(t.Rows, []string{k, v})
			}
		}
		add("kind", kindLabel(kind))
		add("id", b.ID)
		if b.RemoteID != nil {
			add("remoteId", *b.RemoteID)
		}
		add("syncState", string(b.SyncState))
		add("updated", millisTime(b.UpdatedAt))
		add("createdBy", string(b.Provenance.CreatedBy))
		add("lastEditedBy", string(b.Provenance.LastEditedBy))
		add("review", string(b.Provenance.ReviewStatus))
		if len(b.Provenance.ModifiedFields) > 0 {
			add("modified", fmt.Sprint(b.Provenance.ModifiedFields))
		}
		return t
	})
}

func kindLabel(kind domain.Kind) string {
	switch kind {
	case domain.KindRoom:
		return "room"
	case domain.KindMeasurement:
		return "measurement"
	case domain.KindItem:
		return "item"
	case domain.KindOption:
		return "option"
	default:
		return "store"
	}
}
