package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"currencycheck/internal/app"
)

var (
	chartDays int
	chartPNG  string
)

var chartCmd = &cobra.Command{
	Use:     "chart <currency>",
	GroupID: groupDashboard,
	Short:   "Summarise a crypto price history and optionally draw it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Chart(cmd.Context(), app.ChartOptions{
			Currency: args[0],
			Days:     chartDays,
			PNGPath:  chartPNG,
		})
	},
}

var convertCmd = &cobra.Command{
	Use:     "convert <amount> <from> <to>",
	GroupID: groupDashboard,
	Short:   "Convert an amount between any two tracked currencies",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		return getApp().Convert(cmd.Context(), app.ConvertOptions{
			Amount: amount,
			From:   args[1],
			To:     args[2],
		})
	},
}

func init() {
	chartCmd.Flags().IntVar(&chartDays, "days", 7, "Timeframe in days: 1|7|30|90|365")
	chartCmd.Flags().StringVar(&chartPNG, "png", "", "Path to write PNG chart")
}
