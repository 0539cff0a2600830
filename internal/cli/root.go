package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "homeplan",
	Short: "Local-first tracker for a home furnishing project",
	Long: `homeplan tracks rooms, measurements, candidate items, purchase options and
store pricing in a local SQLite file. Bundles can be exported, edited
elsewhere (by hand or by an AI assistant) and merged back without
clobbering trusted data, and the local store can be synced with a remote
record table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to database file (overrides HOMEPLAN_DB_PATH)")
	rootCmd.PersistentFlags().String("actor", "", "Author of edits: human or ai (overrides HOMEPLAN_ACTOR)")
	rootCmd.PersistentFlags().String("unit", "", "Length unit for display and input: in or cm")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("remote-file", "", "Remote record table file used by pull and push")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, ndjson, yaml, tsv")
	rootCmd.PersistentFlags().Bool("porcelain", false, "Machine-readable output without decoration")
}
