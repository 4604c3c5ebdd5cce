package cli

import (
	"github.com/spf13/cobra"

	"currencycheck/internal/app"
	"currencycheck/internal/search"
)

var (
	runFilter    string
	runQuery     string
	runNoConsole bool
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: groupDashboard,
	Short:   "Run the live dashboard (SIGUSR1 refreshes, SIGUSR2 toggles visibility)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := search.ParseMode(runFilter)
		if err != nil {
			return err
		}
		return getApp().Run(cmd.Context(), app.RunOptions{
			Filter:    mode,
			Query:     runQuery,
			NoConsole: runNoConsole,
		})
	},
}

func init() {
	runCmd.Flags().StringVar(&runFilter, "filter", "all", "Which currencies to show: all|favorites")
	runCmd.Flags().StringVar(&runQuery, "query", "", "Only show currencies whose name or symbol contains this text")
	runCmd.Flags().BoolVar(&runNoConsole, "no-console", false, "Do not draw the table (useful with server.enabled)")
}
