package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"currencycheck/internal/domain"
	"currencycheck/internal/service"
)

// ChartOptions configure the chart command.
type ChartOptions struct {
	Currency string
	Days     int
	PNGPath  string
}

// Chart fetches a price history, prints its summary and optionally renders a PNG.
func (a *App) Chart(ctx context.Context, opts ChartOptions) error {
	desc, err := a.resolve(opts.Currency)
	if err != nil {
		return err
	}
	if desc.Class != domain.ClassCrypto {
		return fmt.Errorf("price history is only available for crypto currencies, %s is %s", desc.Symbol, desc.Class)
	}

	history, closeHistory, err := a.newHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	points, _, err := history.Fetch(ctx, desc.ID, opts.Days)
	if err != nil {
		return err
	}

	summary := service.Summarize(points)
	fmt.Fprintf(a.Out, "%s (%s) %s\n", desc.Name, desc.Symbol, timeframeLabel(opts.Days))
	fmt.Fprintf(a.Out, "Period:  %s -> %s\n", summary.Start.Format(time.DateTime), summary.End.Format(time.DateTime))
	fmt.Fprintf(a.Out, "Price:   %s -> %s (%s)\n", domain.FormatPrice(summary.First), domain.FormatPrice(summary.Last), domain.FormatChange(summary.ChangePct))
	fmt.Fprintf(a.Out, "Range:   %s - %s\n", domain.FormatPrice(summary.Min), domain.FormatPrice(summary.Max))
	fmt.Fprintf(a.Out, "Points:  %d\n", summary.Points)

	if opts.PNGPath == "" {
		return nil
	}
	if err := writeHistoryPNG(opts.PNGPath, desc.Symbol, points); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Chart written to %s\n", opts.PNGPath)
	return nil
}

func timeframeLabel(days int) string {
	switch days {
	case 1:
		return "24 hours"
	case 365:
		return "1 year"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

// resolve accepts a catalog id or a symbol, case-insensitively.
func (a *App) resolve(v string) (domain.Descriptor, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return domain.Descriptor{}, errors.New("currency is required")
	}
	if d, ok := a.Catalog.Lookup(v); ok {
		return d, nil
	}
	for _, d := range a.Catalog.All() {
		if strings.EqualFold(d.ID, v) || strings.EqualFold(d.Symbol, v) {
			return d, nil
		}
	}
	return domain.Descriptor{}, fmt.Errorf("unknown currency %q", v)
}

func writeHistoryPNG(path, symbol string, points []domain.PricePoint) error {
	if len(points) == 0 {
		return errors.New("no price points to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.Time
		y[i] = p.Price
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
				if f, ok := v.(float64); ok {
					return domain.FormatPrice(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: x,
				YValues: y,
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
