package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"currencycheck/internal/domain"
)

const fxRatesSource = "fxrates"

// FXRatesOptions parameterise the fiat rates fetcher.
type FXRatesOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// FXRates fetches USD-based fiat exchange rates.
type FXRates struct {
	logger  zerolog.Logger
	http    getter
	baseURL string
}

// NewFXRates constructs a fiat rates fetcher.
func NewFXRates(opts FXRatesOptions, logger zerolog.Logger) *FXRates {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.fxratesapi.com"
	}

	return &FXRates{
		logger: logger.With().Str("component", "fxrates_fetcher").Logger(),
		http: getter{
			source:    fxRatesSource,
			client:    &http.Client{Timeout: timeout},
			userAgent: opts.UserAgent,
		},
		baseURL: baseURL,
	}
}

type latestResponse struct {
	Success *bool              `json:"success"`
	Date    string             `json:"date"`
	Rates   map[string]float64 `json:"rates"`
	Error   json.RawMessage    `json:"error"`
}

// FetchFiat retrieves the latest rates and converts each requested code to a
// USD price (1/rate). Codes without a positive rate are absent from the result.
func (f *FXRates) FetchFiat(ctx context.Context, codes []string) (map[string]domain.Quote, error) {
	payload, err := f.http.get(ctx, f.baseURL+"/latest?base=USD")
	if err != nil {
		return nil, err
	}

	var res latestResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, dataShape(fxRatesSource, "decode latest rates: %v", err)
	}
	if res.Success != nil && !*res.Success {
		msg := errorMessage(res.Error)
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &RemoteError{Source: fxRatesSource, Status: http.StatusOK, Message: msg}
	}
	if res.Rates == nil {
		return nil, dataShape(fxRatesSource, "latest rates missing rates")
	}

	updated := parseRateDate(res.Date)
	out := make(map[string]domain.Quote, len(codes))
	for _, code := range codes {
		rate, ok := res.Rates[code]
		if !ok || rate <= 0 {
			continue
		}
		out[code] = domain.Quote{
			ID:          code,
			Price:       1 / rate,
			LastUpdated: updated,
		}
	}

	f.logger.Debug().Int("requested", len(codes)).Int("received", len(out)).Str("date", res.Date).Msg("fetched fiat rates")
	return out, nil
}

func parseRateDate(v string) int64 {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Unix()
		}
	}
	return time.Now().Unix()
}

var _ FiatQuoteFetcher = (*FXRates)(nil)
