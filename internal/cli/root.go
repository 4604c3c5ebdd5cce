package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"currencycheck/internal/app"
	"currencycheck/internal/config"
	"currencycheck/internal/logging"
)

const (
	groupDashboard = "dashboard"
	groupUser      = "user"
	groupHistory   = "history"
)

var (
	cfgFile   string
	logLevel  string
	prefsPath string
	dsn       string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "currencycheck",
	Short:         "Crypto and fiat exchange-rate dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyOverrides(cfg)

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		appHandle.Out = cmd.OutOrStdout()
		return nil
	},
}

// applyOverrides lets persistent flags win over file and environment values.
func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if prefsPath != "" {
		cfg.Prefs.Path = prefsPath
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to configuration file")
	pf.StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	pf.StringVar(&prefsPath, "prefs", "", "Override the preferences file path")
	pf.StringVar(&dsn, "dsn", "", "Override database.dsn")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupDashboard, Title: "Rates:"},
		&cobra.Group{ID: groupUser, Title: "Favorites, portfolio and preferences:"},
		&cobra.Group{ID: groupHistory, Title: "History and maintenance:"},
	)

	rootCmd.AddCommand(runCmd, showCmd, searchCmd, chartCmd, convertCmd, simulateCmd)
	rootCmd.AddCommand(favoritesCmd, portfolioCmd, prefsCmd)
	rootCmd.AddCommand(exportCmd, samplesCmd, migrateCmd, pruneCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
