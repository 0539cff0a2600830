package cli

import (
	"strconv"
	"strings"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/render"
	"github.com/lherron/homeplan/internal/views"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms in display order",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runRooms),
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List stores in display order",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runStores),
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List items",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.DefaultOptions(), runItems),
}

var measurementsCmd = &cobra.Command{
	Use:     "measurements",
	Aliases: []string{"meas"},
	Short:   "List measurements",
	Args:    cobra.NoArgs,
	RunE:    appctx.WithApp(appctx.DefaultOptions(), runMeasurements),
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List, filter and sort purchase options",
	Long: `List purchase options.

Examples:
  homeplan options --item itm_...             # options of one item
  homeplan options --sort price               # cheapest first, unpriced last
  homeplan options --store ikea --selected    # selected options at IKEA
  homeplan options -q linen --sort updated    # newest matching first
`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runOptions),
}

var (
	listRoom string

	optItem     string
	optStore    string
	optQuery    string
	optSelected bool
	optDeleted  bool
	optSort     string
	optDesc     bool
)

func init() {
	rootCmd.AddCommand(roomsCmd, storesCmd, itemsCmd, measurementsCmd, optionsCmd)

	itemsCmd.Flags().StringVar(&listRoom, "room", "", "Only items in this room (name or id)")
	measurementsCmd.Flags().StringVar(&listRoom, "room", "", "Only measurements in this room (name or id)")

	optionsCmd.Flags().StringVar(&optItem, "item", "", "Only options of this item")
	optionsCmd.Flags().StringVar(&optStore, "store", "", "Only options at this store")
	optionsCmd.Flags().StringVarP(&optQuery, "query", "q", "", "Search terms; every term must occur in title, store, notes, tags or specs")
	optionsCmd.Flags().BoolVar(&optSelected, "selected", false, "Only selected options")
	optionsCmd.Flags().BoolVar(&optDeleted, "deleted", false, "Include deleted options")
	optionsCmd.Flags().StringVar(&optSort, "sort", "manual", "Sort by manual, price, title, priority or updated")
	optionsCmd.Flags().BoolVar(&optDesc, "desc", false, "Reverse the sort order")
}

func runRooms(app *appctx.App, cmd *cobra.Command, args []string) error {
	rooms, err := app.Planner.OrderedRooms()
	if err != nil {
		return err
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(rooms, func() render.Table {
		t := render.Table{Headers: []string{"ID", "NAME", "SYNC", "REVIEW"}}
		for _, room := range rooms {
			t.Rows = append(t.Rows, []string{room.ID, room.Name, string(room.SyncState), string(room.Provenance.ReviewStatus)})
		}
		return t
	})
}

func runStores(app *appctx.App, cmd *cobra.Command, args []string) error {
	stores, err := app.Planner.OrderedStores()
	if err != nil {
		return err
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(stores, func() render.Table {
		t := render.Table{Headers: []string{"ID", "NAME", "DISCOUNT", "SHIPPING", "TAX", "SYNC"}}
		for _, s := range stores {
			discount := ""
			if s.DiscountType != "" && s.DiscountValue != nil {
				discount = strconv.FormatFloat(*s.DiscountValue, 'f', -1, 64)
				if s.DiscountType == domain.DiscountPercent {
					discount += "%"
				}
			}
			t.Rows = append(t.Rows, []string{s.ID, s.Name, discount, money(s.ShippingCost), money(s.TaxCost), string(s.SyncState)})
		}
		return t
	})
}

func runItems(app *appctx.App, cmd *cobra.Command, args []string) error {
	snap, err := app.Planner.Snapshot()
	if err != nil {
		return err
	}
	roomID := ""
	if listRoom != "" {
		if roomID, err = resolveRoom(app.Planner, listRoom); err != nil {
			return err
		}
	}
	items := make([]domain.Item, 0, len(snap.Items))
	for _, it := range snap.Items {
		if it.IsDeleted() || (roomID != "" && it.Room != roomID) {
			continue
		}
		items = append(items, it)
	}
	roomNames := make(map[string]string, len(snap.Rooms))
	for _, room := range snap.Rooms {
		roomNames[room.ID] = room.Name
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(items, func() render.Table {
		t := render.Table{Headers: []string{"ID", "NAME", "ROOM", "STATUS", "PRICE", "QTY", "STORE", "PRI", "SELECTED"}}
		for _, it := range items {
			t.Rows = append(t.Rows, []string{
				it.ID, it.Name, roomNames[it.Room], string(it.Status), money(it.Price),
				strconv.Itoa(it.Qty), it.Store, intPtr(it.Priority), it.SelectedOptionID,
			})
		}
		return t
	})
}

func runMeasurements(app *appctx.App, cmd *cobra.Command, args []string) error {
	snap, err := app.Planner.Snapshot()
	if err != nil {
		return err
	}
	roomID := ""
	if listRoom != "" {
		if roomID, err = resolveRoom(app.Planner, listRoom); err != nil {
			return err
		}
	}
	var out []domain.Measurement
	for _, m := range snap.Measurements {
		if m.IsDeleted() || (roomID != "" && m.Room != roomID) {
			continue
		}
		out = append(out, m)
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(out, func() render.Table {
		t := render.Table{Headers: []string{"ID", "ROOM", "LABEL", "VALUE", "CONFIDENCE", "FOR"}}
		for _, m := range out {
			room, _ := snap.RoomByID(m.Room)
			name := m.Room
			if room != nil {
				name = room.Name
			}
			t.Rows = append(t.Rows, []string{
				m.ID, name, m.Label, domain.FormatLength(m.ValueIn, app.Unit), string(m.Confidence),
				strings.TrimSpace(m.ForCategory + " " + m.ForItemID),
			})
		}
		return t
	})
}

func runOptions(app *appctx.App, cmd *cobra.Command, args []string) error {
	sortBy, err := views.ParseOptionSort(optSort)
	if err != nil {
		return err
	}
	options, err := app.Planner.SortAndFilterOptions(views.OptionFilter{
		ItemID:         optItem,
		Store:          optStore,
		Query:          optQuery,
		SelectedOnly:   optSelected,
		IncludeDeleted: optDeleted,
		Sort:           sortBy,
		Desc:           optDesc,
	})
	if err != nil {
		return err
	}
	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(options, func() render.Table {
		t := render.Table{Headers: []string{"ID", "ITEM", "TITLE", "STORE", "PRICE", "EFFECTIVE", "SEL", "SYNC"}}
		for _, o := range options {
			effective := ""
			if o.Price != nil {
				v := views.EffectiveOptionPrice(&o)
				effective = money(&v)
			}
			t.Rows = append(t.Rows, []string{
				o.ID, o.ItemID, o.Title, o.Store, money(o.Price), effective, mark(o.Selected), string(o.SyncState),
			})
		}
		return t
	})
}
