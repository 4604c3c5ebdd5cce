package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"currencycheck/internal/app"
	"currencycheck/internal/search"
)

var (
	showFilter string

	samplesLimit  int
	samplesAlerts bool
)

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: groupDashboard,
	Short:   "Fetch current rates once and print the table",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := search.ParseMode(showFilter)
		if err != nil {
			return err
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Filter: mode})
	},
}

var searchCmd = &cobra.Command{
	Use:     "search <text>",
	GroupID: groupDashboard,
	Short:   "Show currencies whose name or symbol matches",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := search.ParseMode(showFilter)
		if err != nil {
			return err
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Filter: mode, Query: strings.Join(args, " ")})
	},
}

var samplesCmd = &cobra.Command{
	Use:     "samples",
	GroupID: groupHistory,
	Short:   "Display recently stored quote samples or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if samplesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Samples(cmd.Context(), app.SamplesOptions{Limit: samplesLimit, Alerts: samplesAlerts})
	},
}

func init() {
	showCmd.Flags().StringVar(&showFilter, "filter", "all", "Which currencies to show: all|favorites")
	searchCmd.Flags().StringVar(&showFilter, "filter", "all", "Which currencies to search: all|favorites")

	samplesCmd.Flags().IntVar(&samplesLimit, "limit", 20, "Number of rows to display")
	samplesCmd.Flags().BoolVar(&samplesAlerts, "alerts", false, "Show stored alerts instead of samples")
}
