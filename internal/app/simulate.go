package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"currencycheck/internal/alerting"
	"currencycheck/internal/domain"
)

// SimulateOptions describe a synthetic price move.
type SimulateOptions struct {
	Currency  string
	Price     float64
	Change24h float64
}

// SimulateAlert 通过给定的价格与 24h 涨跌幅模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	desc, err := a.resolve(opts.Currency)
	if err != nil {
		return err
	}
	if opts.Price <= 0 {
		return errors.New("price must be greater than zero")
	}

	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	notifier := a.newNotifier(os.Stderr, userPrefs.SoundEnabled)
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	detector := a.newDetector()
	now := time.Now()
	entry := domain.NewEntry(desc, domain.Quote{ID: desc.ID, Price: opts.Price, Change24h: opts.Change24h, LastUpdated: now.Unix()})

	// The detector only alerts on currencies it has seen, so prime it first.
	detector.Evaluate(domain.Snapshot{Entries: []domain.Entry{entry}, TakenAt: now}, now)
	notes := detector.Evaluate(domain.Snapshot{Entries: []domain.Entry{entry}, TakenAt: now}, now)
	if len(notes) == 0 {
		return fmt.Errorf("变动 %s 未超过阈值 %.2f%%", domain.FormatChange(opts.Change24h), a.Config.Alerting.ThresholdPct)
	}

	for _, note := range notes {
		fmt.Fprintln(a.Out, alerting.RenderMessage(note))
		if err := notifier.Notify(ctx, note); err != nil {
			return err
		}
	}
	return nil
}
