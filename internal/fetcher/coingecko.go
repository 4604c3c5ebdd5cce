package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"currencycheck/internal/domain"
)

const coinGeckoSource = "coingecko"

// CoinGeckoOptions parameterise the CoinGecko fetcher.
type CoinGeckoOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerMinute throttles outgoing calls client-side. Zero disables it.
	RequestsPerMinute int
	HistoryAttempts   uint
	HistoryBackoff    time.Duration
}

// CoinGecko fetches crypto prices and price history.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	http    getter
	baseURL string
	limiter *rate.Limiter
}

// NewCoinGecko constructs a CoinGecko fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.HistoryAttempts == 0 {
		opts.HistoryAttempts = 3
	}
	if opts.HistoryBackoff <= 0 {
		opts.HistoryBackoff = 500 * time.Millisecond
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	headers := map[string]string{}
	if key := strings.TrimSpace(opts.APIKey); key != "" {
		headers["x-cg-demo-api-key"] = key
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 2)
	}

	return &CoinGecko{
		opts:   opts,
		logger: logger.With().Str("component", "coingecko_fetcher").Logger(),
		http: getter{
			source:    coinGeckoSource,
			client:    &http.Client{Timeout: timeout},
			userAgent: opts.UserAgent,
			headers:   headers,
		},
		baseURL: baseURL,
		limiter: limiter,
	}
}

type simplePrice struct {
	USD           *float64 `json:"usd"`
	USD24hChange  *float64 `json:"usd_24h_change"`
	LastUpdatedAt int64    `json:"last_updated_at"`
}

// FetchCrypto retrieves USD prices and 24h change for ids in a single request.
func (c *CoinGecko) FetchCrypto(ctx context.Context, ids []string) (map[string]domain.Quote, error) {
	if len(ids) == 0 {
		return map[string]domain.Quote{}, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_last_updated_at", "true")

	payload, err := c.http.get(ctx, c.baseURL+"/simple/price?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var res map[string]simplePrice
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, dataShape(coinGeckoSource, "decode simple price: %v", err)
	}

	now := time.Now().Unix()
	out := make(map[string]domain.Quote, len(res))
	for id, p := range res {
		if p.USD == nil {
			continue
		}
		if *p.USD < 0 || math.IsNaN(*p.USD) {
			return nil, dataShape(coinGeckoSource, "negative price for %s", id)
		}
		quote := domain.Quote{ID: id, Price: *p.USD, LastUpdated: p.LastUpdatedAt}
		if p.USD24hChange != nil {
			quote.Change24h = *p.USD24hChange
		}
		if quote.LastUpdated == 0 {
			quote.LastUpdated = now
		}
		out[id] = quote
	}

	c.logger.Debug().Int("requested", len(ids)).Int("received", len(out)).Msg("fetched crypto prices")
	return out, nil
}

type marketChart struct {
	Prices [][]float64 `json:"prices"`
}

// FetchHistory retrieves the USD price series for id. Transient failures,
// 429 and 5xx replies are retried with exponential backoff.
func (c *CoinGecko) FetchHistory(ctx context.Context, id string, days int) ([]domain.PricePoint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("currency id required")
	}
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	endpoint := c.baseURL + "/coins/" + url.PathEscape(id) + "/market_chart?" + q.Encode()

	var points []domain.PricePoint
	err := retry.Do(
		func() error {
			if err := c.wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			payload, err := c.http.get(ctx, endpoint)
			if err != nil {
				return err
			}
			points, err = decodeMarketChart(payload)
			return err
		},
		retry.Attempts(c.opts.HistoryAttempts),
		retry.Delay(c.opts.HistoryBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(Retryable),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Uint("attempt", n+1).Str("currency", id).Msg("retrying history fetch")
		}),
	)
	if err != nil {
		return nil, err
	}
	return points, nil
}

func decodeMarketChart(payload []byte) ([]domain.PricePoint, error) {
	var res marketChart
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, dataShape(coinGeckoSource, "decode market chart: %v", err)
	}
	if len(res.Prices) == 0 {
		return nil, dataShape(coinGeckoSource, "market chart has no prices")
	}

	points := make([]domain.PricePoint, 0, len(res.Prices))
	for _, p := range res.Prices {
		if len(p) < 2 {
			return nil, dataShape(coinGeckoSource, "market chart point has %d fields", len(p))
		}
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Price: p[1],
		})
	}
	return points, nil
}

func (c *CoinGecko) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

var (
	_ CryptoQuoteFetcher = (*CoinGecko)(nil)
	_ HistoryFetcher     = (*CoinGecko)(nil)
)
