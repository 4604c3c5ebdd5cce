//go:build !windows

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"currencycheck/internal/service"
)

// watchSignals maps SIGUSR1 to a manual refresh and SIGUSR2 to toggling
// visibility, until ctx is done.
func watchSignals(ctx context.Context, ctl visibilityController, logger zerolog.Logger) {
	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				if _, err := ctl.Refresh(ctx, service.TriggerManual, false); err != nil {
					logger.Warn().Err(err).Msg("manual refresh failed")
				}
			case syscall.SIGUSR2:
				visible := !ctl.Visible()
				if _, err := ctl.SetVisible(ctx, visible); err != nil {
					logger.Warn().Err(err).Msg("visibility refresh failed")
				}
				logger.Info().Bool("visible", visible).Msg("visibility toggled")
			}
		}
	}
}
