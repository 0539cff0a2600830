package cli

import (
	"fmt"

	"github.com/lherron/homeplan/internal/cli/appctx"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select <item> [option]",
	Short: "Choose the purchase option of an item",
	Long: `Make an option the item's single selection. Without an option, or with
--clear, the item's selection is removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runSelect),
}

var convertCmd = &cobra.Command{
	Use:   "convert <item> <target-item>",
	Short: "Turn an item into a purchase option of another item",
	Long: `Convert an item into an option under the target item. The item and its
options are deleted and its attachments move to the new option. An item
can only be converted once.`,
	Args: cobra.ExactArgs(2),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runConvert),
}

var verifyCmd = &cobra.Command{
	Use:   "verify [id...]",
	Short: "Mark records as reviewed",
	Long: `Set the review status of records. Verifying a record clears its list of
modified fields and its change log.

Examples:
  homeplan verify itm_... opt_...            # mark verified
  homeplan verify itm_... --status needs_review
  homeplan verify --all                      # verify everything pending
`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runVerify),
}

var (
	selectClear    bool
	verifyStatus   string
	verifyAll      bool
	verifyContinue bool
)

func init() {
	rootCmd.AddCommand(selectCmd, convertCmd, verifyCmd)

	selectCmd.Flags().BoolVar(&selectClear, "clear", false, "Clear the item's selection")
	verifyCmd.Flags().StringVar(&verifyStatus, "status", "verified", "Review status: verified, needs_review or ai_modified")
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "Verify every record that is pending review")
	verifyCmd.Flags().BoolVar(&verifyContinue, "continue-on-error", false, "Keep going after a record fails")
}

func runSelect(app *appctx.App, cmd *cobra.Command, args []string) error {
	optionID := ""
	if len(args) == 2 && !selectClear {
		optionID = args[1]
	}
	if err := app.Planner.SelectOption(args[0], optionID); err != nil {
		return err
	}
	if optionID == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared selection of %s\n", args[0])
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Selected %s for %s\n", optionID, args[0])
	return nil
}

func runConvert(app *appctx.App, cmd *cobra.Command, args []string) error {
	o, err := app.Planner.ConvertItemToOption(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s into option %s of %s\n", args[0], o.ID, o.ItemID)
	return nil
}

func runVerify(app *appctx.App, cmd *cobra.Command, args []string) error {
	if verifyAll {
		if len(args) > 0 {
			return fmt.Errorf("--all takes no record ids")
		}
		n, err := app.Planner.VerifyPending()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verified %d record(s)\n", n)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("name at least one record, or use --all")
	}
	status, err := planner.ParseReviewStatus(verifyStatus)
	if err != nil {
		return err
	}
	return eachRecord(cmd, args, verifyContinue, func(arg string) error {
		kind, recordID, err := resolveRecord(app.Planner, arg)
		if err != nil {
			return err
		}
		if err := app.Planner.SetReviewStatus(kind, recordID, status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", kindLabel(kind), recordID, status)
		return nil
	})
}
