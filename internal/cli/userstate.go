package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"currencycheck/internal/app"
)

var (
	holdingAmount   float64
	holdingBuyPrice float64
)

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	GroupID: groupUser,
	Short:   "List favorite currencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListFavorites()
	},
}

var favoritesToggleCmd = &cobra.Command{
	Use:   "toggle <currency>",
	Short: "Add or remove a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ToggleFavorite(args[0])
	},
}

var portfolioCmd = &cobra.Command{
	Use:     "portfolio",
	GroupID: groupUser,
	Short:   "Value the local portfolio at current prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Portfolio(cmd.Context())
	},
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add <currency>",
	Short: "Add a holding (buy price defaults to the current price)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if holdingAmount <= 0 {
			return fmt.Errorf("--amount must be greater than zero")
		}
		return getApp().AddHolding(cmd.Context(), app.AddHoldingOptions{
			Currency: args[0],
			Amount:   holdingAmount,
			BuyPrice: holdingBuyPrice,
		})
	},
}

var portfolioRemoveCmd = &cobra.Command{
	Use:   "remove <number>",
	Short: "Remove a holding by its number in the portfolio listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid holding number %q", args[0])
		}
		return getApp().RemoveHolding(n)
	},
}

var prefsCmd = &cobra.Command{
	Use:     "prefs",
	GroupID: groupUser,
	Short:   "Show preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowPrefs()
	},
}

var prefsThemeCmd = &cobra.Command{
	Use:   "theme <light|dark>",
	Short: "Set the display theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetTheme(args[0])
	},
}

var prefsSoundCmd = &cobra.Command{
	Use:   "sound",
	Short: "Toggle the alert bell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ToggleSound()
	},
}

func init() {
	favoritesCmd.AddCommand(favoritesToggleCmd)

	portfolioAddCmd.Flags().Float64Var(&holdingAmount, "amount", 0, "Amount held")
	portfolioAddCmd.Flags().Float64Var(&holdingBuyPrice, "buy-price", 0, "Buy price in USD")
	portfolioCmd.AddCommand(portfolioAddCmd)
	portfolioCmd.AddCommand(portfolioRemoveCmd)

	prefsCmd.AddCommand(prefsThemeCmd)
	prefsCmd.AddCommand(prefsSoundCmd)
}
