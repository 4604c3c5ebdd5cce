package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"currencycheck/internal/app"
)

var (
	simulatePrice  float64
	simulateChange float64
)

var simulateCmd = &cobra.Command{
	Use:     "simulate-alert <currency>",
	GroupID: groupDashboard,
	Short:   "模拟一次价格异动并触发告警",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 {
			return errors.New("--price 必须大于 0")
		}
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Currency:  args[0],
			Price:     simulatePrice,
			Change24h: simulateChange,
		})
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "模拟价格 (USD)")
	simulateCmd.Flags().Float64Var(&simulateChange, "change", 0, "模拟 24h 涨跌幅 (%)")
}
