package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var pruneOlderThan time.Duration

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	GroupID:   groupHistory,
	Short:     "Apply the quote history schema migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}
		return getApp().Migrate(cmd.Context(), command)
	},
}

var pruneCmd = &cobra.Command{
	Use:     "prune",
	GroupID: groupHistory,
	Short:   "Delete stored samples and alerts past the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Prune(cmd.Context(), pruneOlderThan)
	},
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Retention override, e.g. 168h (defaults to database.retention)")
}
