package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"currencycheck/internal/domain"
)

const defaultUserAgent = "currencycheck/1.0"

// CryptoQuoteFetcher retrieves USD prices for a batch of crypto ids. Ids the
// upstream does not report are absent from the result.
type CryptoQuoteFetcher interface {
	FetchCrypto(ctx context.Context, ids []string) (map[string]domain.Quote, error)
}

// FiatQuoteFetcher retrieves the USD price of each fiat code.
type FiatQuoteFetcher interface {
	FetchFiat(ctx context.Context, codes []string) (map[string]domain.Quote, error)
}

// HistoryFetcher retrieves a price series for one currency over the last days.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, id string, days int) ([]domain.PricePoint, error)
}

type getter struct {
	source    string
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// get performs a GET and returns the body of a 200 reply. Any other status is
// a RemoteError; transport failures wrap ErrTransientNetwork.
func (g getter) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", g.source, err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransport(g.source, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(g.source, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(g.source, resp.StatusCode, payload)
	}
	return payload, nil
}
