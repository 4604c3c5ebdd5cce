package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"currencycheck/internal/domain"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertQuoteSampleSQL = `INSERT INTO quote_samples (
        sampled_at,
        currency_id,
        class,
        price,
        change_24h,
        last_updated
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (currency_id, sampled_at) DO UPDATE
    SET
        class        = EXCLUDED.class,
        price        = EXCLUDED.price,
        change_24h   = EXCLUDED.change_24h,
        last_updated = EXCLUDED.last_updated;`

	listSamplesBetweenSQL = `SELECT
        sampled_at,
        currency_id,
        class,
        price,
        change_24h,
        last_updated,
        created_at
    FROM quote_samples
    WHERE sampled_at >= $1
      AND sampled_at < $2
      AND ($3 = '' OR currency_id = $3)
    ORDER BY sampled_at, currency_id;`

	listRecentSamplesSQL = `SELECT
        sampled_at,
        currency_id,
        class,
        price,
        change_24h,
        last_updated,
        created_at
    FROM quote_samples
    ORDER BY sampled_at DESC, currency_id
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM quote_samples;`

	deleteSamplesBeforeSQL = `DELETE FROM quote_samples WHERE sampled_at < $1;`

	insertAlertSQL = `INSERT INTO price_alerts (
        currency_id,
        symbol,
        price,
        change_24h,
        threshold_pct,
        direction,
        channels,
        alerted_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, currency_id, symbol, price, change_24h, threshold_pct, direction, channels, alerted_at, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        currency_id,
        symbol,
        price,
        change_24h,
        threshold_pct,
        direction,
        channels,
        alerted_at,
        created_at
    FROM price_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM price_alerts WHERE created_at < $1;`
)

// QuoteSampleStore defines operations for quote sample persistence.
type QuoteSampleStore interface {
	UpsertQuoteSamples(ctx context.Context, samples []QuoteSample) error
	ListSamplesBetween(ctx context.Context, currencyID string, from, to time.Time) ([]QuoteSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]QuoteSample, error)
	CountSamples(ctx context.Context) (int64, error)
	DeleteSamplesBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates access to quote samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertQuoteSamples persists samples in one batch.
func (s *Store) UpsertQuoteSamples(ctx context.Context, samples []QuoteSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sample := range samples {
		var updated interface{}
		if sample.LastUpdated != nil {
			updated = *sample.LastUpdated
		}
		batch.Queue(upsertQuoteSampleSQL,
			sample.SampledAt,
			sample.CurrencyID,
			string(sample.Class),
			sample.Price.String(),
			sample.Change24h.String(),
			updated,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range samples {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert quote sample %s: %w", samples[i].CurrencyID, execErr)
		}
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, optionally for one currency.
func (s *Store) ListSamplesBetween(ctx context.Context, currencyID string, from, to time.Time) ([]QuoteSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to, currencyID)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]QuoteSample, 0)
	for rows.Next() {
		sample, scanErr := scanQuoteSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending time.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]QuoteSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]QuoteSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanQuoteSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// DeleteSamplesBefore prunes old samples and returns how many were removed.
func (s *Store) DeleteSamplesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteSamplesBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete samples before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.CurrencyID,
		alert.Symbol,
		alert.Price.String(),
		alert.Change24h.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		channels,
		alert.AlertedAt,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanQuoteSample(rows pgx.Rows) (QuoteSample, error) {
	var (
		sampledAt  time.Time
		currencyID string
		class      string
		priceStr   string
		changeStr  string
		updated    sql.NullTime
		createdAt  time.Time
	)

	if err := rows.Scan(
		&sampledAt,
		&currencyID,
		&class,
		&priceStr,
		&changeStr,
		&updated,
		&createdAt,
	); err != nil {
		return QuoteSample{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return QuoteSample{}, fmt.Errorf("parse price: %w", err)
	}
	change, err := decimal.NewFromString(changeStr)
	if err != nil {
		return QuoteSample{}, fmt.Errorf("parse change: %w", err)
	}

	sample := QuoteSample{
		SampledAt:  sampledAt,
		CurrencyID: currencyID,
		Class:      domain.Class(class),
		Price:      price,
		Change24h:  change,
		CreatedAt:  createdAt,
	}
	if updated.Valid {
		value := updated.Time
		sample.LastUpdated = &value
	}
	return sample, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var priceStr, changeStr, thresholdStr string
	if err := row.Scan(
		&rec.ID,
		&rec.CurrencyID,
		&rec.Symbol,
		&priceStr,
		&changeStr,
		&thresholdStr,
		&rec.Direction,
		&rec.Channels,
		&rec.AlertedAt,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	if rec.Price, convErr = decimal.NewFromString(priceStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse price: %w", convErr)
	}
	if rec.Change24h, convErr = decimal.NewFromString(changeStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse change: %w", convErr)
	}
	if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", convErr)
	}
	return rec, nil
}

var (
	_ QuoteSampleStore = (*Store)(nil)
	_ AlertStore       = (*Store)(nil)
)
