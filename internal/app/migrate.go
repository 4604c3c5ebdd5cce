package app

import (
	"context"
	"errors"
	"time"

	"currencycheck/internal/storage"
)

// Migrate runs the embedded schema migrations.
func (a *App) Migrate(ctx context.Context, command string) error {
	if !a.Config.Database.Enabled() {
		return errors.New("database.dsn 未配置，无法执行迁移")
	}
	if err := storage.Migrate(ctx, a.Config.Database.DSN, command); err != nil {
		return err
	}
	a.Logger.Info().Str("command", command).Msg("migrations finished")
	return nil
}

// Prune deletes samples and alerts older than olderThan, or the configured
// retention when olderThan is zero.
func (a *App) Prune(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		olderThan = a.Config.Database.Retention
	}
	if olderThan <= 0 {
		return errors.New("retention must be greater than zero")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法清理")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	removed, err := store.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if err := store.DeleteAlertsBefore(ctx, cutoff); err != nil {
		return err
	}
	remaining, err := store.CountSamples(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Time("cutoff", cutoff).Int64("removed", removed).Int64("remaining", remaining).Msg("清理完成")
	return nil
}
