package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"currencycheck/internal/domain"
	"currencycheck/internal/storage"
)

// ExportOptions hold parameters for exporting dashboard data and stored samples.
type ExportOptions struct {
	// JSONPath receives {currencies, favorites, portfolio, exportDate}; "-" is stdout.
	JSONPath  string
	CSVPath   string
	PNGPath   string
	Currency  string
	From      *time.Time
	To        *time.Time
	MaxPoints int
}

// Dump is the JSON export document.
type Dump struct {
	Currencies []domain.Entry    `json:"currencies"`
	Favorites  []string          `json:"favorites"`
	Portfolio  []domain.Holding  `json:"portfolio"`
	Statistics domain.Statistics `json:"statistics"`
	ExportDate time.Time         `json:"exportDate"`
}

// Export writes the JSON dump and/or CSV/PNG of stored samples.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.JSONPath == "" && opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --json, --csv or --png must be provided")
	}

	if opts.JSONPath != "" {
		if err := a.exportJSON(ctx, opts.JSONPath); err != nil {
			return err
		}
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return nil
	}
	return a.exportSamples(ctx, opts)
}

func (a *App) exportJSON(ctx context.Context, path string) error {
	userPrefs, err := a.openPrefs()
	if err != nil {
		return err
	}
	snap, coord, err := a.snapshotOnce(ctx, coordinatorDeps{})
	if err != nil {
		return err
	}

	dump := Dump{
		Currencies: snap.Sorted(),
		Favorites:  userPrefs.Favorites(),
		Portfolio:  userPrefs.Holdings(),
		Statistics: coord.Statistics(),
		ExportDate: time.Now().UTC(),
	}

	if path == "-" {
		return writeDump(a.Out, dump)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := writeDump(file, dump); err != nil {
		return err
	}
	a.Logger.Info().Str("path", path).Int("currencies", len(dump.Currencies)).Msg("exported dashboard data")
	return nil
}

func writeDump(w io.Writer, dump Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

func (a *App) exportSamples(ctx context.Context, opts ExportOptions) error {
	var currencyID string
	if opts.Currency != "" {
		desc, err := a.resolve(opts.Currency)
		if err != nil {
			return err
		}
		currencyID = desc.ID
	}
	if opts.PNGPath != "" && currencyID == "" {
		return errors.New("--currency is required for --png")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Refresh.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, currencyID, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, currencyID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.QuoteSample, max int) []storage.QuoteSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.QuoteSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.QuoteSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"sampled_at", "currency_id", "type", "price_usd", "change_24h_pct", "last_updated"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		updated := ""
		if sample.LastUpdated != nil {
			updated = sample.LastUpdated.UTC().Format(time.RFC3339)
		}
		record := []string{
			sample.SampledAt.UTC().Format(time.RFC3339),
			sample.CurrencyID,
			string(sample.Class),
			sample.Price.String(),
			sample.Change24h.String(),
			updated,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSamplesPNG(path, currencyID string, samples []storage.QuoteSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	price := make([]float64, len(samples))
	change := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.SampledAt
		price[i] = sample.Price.InexactFloat64()
		change[i] = sample.Change24h.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "24h change (%)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    currencyID,
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "24h %",
				XValues: x,
				YValues: change,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
