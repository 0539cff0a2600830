package cli

import (
	"fmt"
	"strconv"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/render"
	"github.com/lherron/homeplan/internal/report"
	"github.com/spf13/cobra"
)

var allocCmd = &cobra.Command{
	Use:   "alloc",
	Short: "Show the cost of the current selections per store",
	Long: `Group the live items by store, using each item's selected option when it
has one. A store's shipping, warranty and tax are charged once, to its
anchor line: the highest-priority line, then the most recently updated.

With --xlsx the breakdown is saved as a spreadsheet ("-" writes it to
stdout).`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runAlloc),
}

var allocXLSX string

func init() {
	rootCmd.AddCommand(allocCmd)

	allocCmd.Flags().StringVar(&allocXLSX, "xlsx", "", "Save the breakdown as an .xlsx workbook")
}

func runAlloc(app *appctx.App, cmd *cobra.Command, args []string) error {
	a, err := app.Planner.Allocation()
	if err != nil {
		return err
	}
	switch allocXLSX {
	case "":
	case "-":
		return report.WriteAllocation(cmd.OutOrStdout(), a)
	default:
		if err := report.SaveAllocation(allocXLSX, a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", allocXLSX)
		return nil
	}

	r, err := app.Renderer(cmd)
	if err != nil {
		return err
	}
	return r.Render(a, func() render.Table {
		t := render.Table{Headers: []string{"STORE", "LINE", "QTY", "NET", "SHARED", "TOTAL"}}
		for _, st := range a.Stores {
			name := st.Name
			if !st.Known {
				name += " (no store record)"
			}
			for _, l := range st.Lines {
				shared := ""
				if l.Anchor {
					shared = st.Shipping.Add(st.Warranty).Add(st.Tax).StringFixed(2)
				}
				t.Rows = append(t.Rows, []string{name, l.Title, strconv.Itoa(l.Qty), l.Net.StringFixed(2), shared, ""})
				name = ""
			}
			t.Rows = append(t.Rows, []string{"", "subtotal " + st.Subtotal.StringFixed(2), "", "-" + st.StoreDiscount.StringFixed(2), "", st.Total.StringFixed(2)})
		}
		for _, l := range a.Unassigned {
			t.Rows = append(t.Rows, []string{"(no store)", l.Title, strconv.Itoa(l.Qty), l.Net.StringFixed(2), "", l.Net.StringFixed(2)})
		}
		t.Rows = append(t.Rows, []string{"TOTAL", "", "", "", "", a.Total.StringFixed(2)})
		return t
	})
}
