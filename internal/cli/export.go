package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"currencycheck/internal/app"
)

var exportOpts struct {
	from, to  string
	since     time.Duration
	jsonPath  string
	pngPath   string
	csvPath   string
	currency  string
	maxPoints int
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: groupHistory,
	Short:   "Export current data as JSON, or stored samples as CSV and/or PNG chart",
	Example: "  currencycheck export --json -\n  currencycheck export --currency bitcoin --since 24h --png btc.png --csv btc.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOpts.since > 0 && exportOpts.from != "" {
			return fmt.Errorf("--since and --from are mutually exclusive")
		}

		opts := app.ExportOptions{
			JSONPath:  exportOpts.jsonPath,
			PNGPath:   exportOpts.pngPath,
			CSVPath:   exportOpts.csvPath,
			Currency:  exportOpts.currency,
			MaxPoints: exportOpts.maxPoints,
		}

		var err error
		if opts.From, err = parseTimeFlag("from", exportOpts.from); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", exportOpts.to); err != nil {
			return err
		}
		if exportOpts.since > 0 {
			from := time.Now().UTC().Add(-exportOpts.since)
			opts.From = &from
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

// parseTimeFlag accepts RFC3339 timestamps or plain dates (UTC midnight).
func parseTimeFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s value %q: want RFC3339 or YYYY-MM-DD", name, v)
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.jsonPath, "json", "", "Path to write the JSON dump (- for stdout)")
	f.StringVar(&exportOpts.from, "from", "", "Start of the sample window (RFC3339 or YYYY-MM-DD, inclusive)")
	f.StringVar(&exportOpts.to, "to", "", "End of the sample window (RFC3339 or YYYY-MM-DD, exclusive)")
	f.DurationVar(&exportOpts.since, "since", 0, "Sample window ending now, e.g. 24h")
	f.StringVar(&exportOpts.pngPath, "png", "", "Path to write PNG chart")
	f.StringVar(&exportOpts.csvPath, "csv", "", "Path to write CSV data")
	f.StringVar(&exportOpts.currency, "currency", "", "Limit samples to one currency (required for --png)")
	f.IntVar(&exportOpts.maxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
