package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFetchFiatReciprocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest", r.URL.Path)
		require.Equal(t, "USD", r.URL.Query().Get("base"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"date":"2024-01-02T00:00:00Z","rates":{"EUR":0.92,"JPY":150,"XXX":0}}`))
	}))
	defer srv.Close()

	f := NewFXRates(FXRatesOptions{BaseURL: srv.URL}, zerolog.Nop())
	quotes, err := f.FetchFiat(context.Background(), []string{"EUR", "JPY", "XXX", "GBP"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	eur := quotes["EUR"]
	require.InDelta(t, 1.0870, eur.Price, 1e-4)
	require.Zero(t, eur.Change24h)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(), eur.LastUpdated)
	require.InDelta(t, 1.0/150, quotes["JPY"].Price, 1e-9)
}

func TestFetchFiatAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":{"info":"quota exceeded"}}`))
	}))
	defer srv.Close()

	f := NewFXRates(FXRatesOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := f.FetchFiat(context.Background(), []string{"EUR"})
	re, ok := AsRemote(err)
	require.True(t, ok)
	require.Equal(t, "quota exceeded", re.Message)
}

func TestFetchFiatMissingRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"date":"2024-01-02"}`))
	}))
	defer srv.Close()

	f := NewFXRates(FXRatesOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := f.FetchFiat(context.Background(), []string{"EUR"})
	require.ErrorIs(t, err, ErrDataShape)
}

func TestFetchCryptoParsesQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "bitcoin,ethereum,ghost", r.URL.Query().Get("ids"))
		require.Equal(t, "true", r.URL.Query().Get("include_24hr_change"))
		require.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`{
			"bitcoin":{"usd":60000.5,"usd_24h_change":2.5,"last_updated_at":1700000000},
			"ethereum":{"usd":3000,"usd_24h_change":-1.25,"last_updated_at":1700000001}
		}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, APIKey: "demo-key"}, zerolog.Nop())
	quotes, err := c.FetchCrypto(context.Background(), []string{"bitcoin", "ethereum", "ghost"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.InDelta(t, 60000.5, quotes["bitcoin"].Price, 1e-9)
	require.InDelta(t, -1.25, quotes["ethereum"].Change24h, 1e-9)
	require.Equal(t, int64(1700000000), quotes["bitcoin"].LastUpdated)
	_, ok := quotes["ghost"]
	require.False(t, ok)
}

func TestFetchCryptoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":{"error_message":"maintenance"}}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchCrypto(context.Background(), []string{"bitcoin"})
	re, ok := AsRemote(err)
	require.True(t, ok)
	require.Equal(t, http.StatusServiceUnavailable, re.Status)
	require.Equal(t, "maintenance", re.Message)
	require.True(t, Retryable(err))
}

func TestFetchCryptoMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchCrypto(context.Background(), []string{"bitcoin"})
	require.ErrorIs(t, err, ErrDataShape)
	require.False(t, Retryable(err))
}

func TestFetchCryptoTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchCrypto(context.Background(), []string{"bitcoin"})
	require.True(t, IsTransient(err))
}

func TestFetchHistoryEmptyPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices":[]}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchHistory(context.Background(), "bitcoin", 7)
	require.ErrorIs(t, err, ErrDataShape)
}

func TestFetchHistoryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/coins/bitcoin/market_chart"))
		require.Equal(t, "30", r.URL.Query().Get("days"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,100.5],[1700003600000,101]]}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, HistoryBackoff: time.Millisecond}, zerolog.Nop())
	points, err := c.FetchHistory(context.Background(), "bitcoin", 30)
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Len(t, points, 2)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), points[0].Time)
	require.InDelta(t, 101, points[1].Price, 1e-9)
}

func TestFetchHistoryDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"coin not found"}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, HistoryBackoff: time.Millisecond}, zerolog.Nop())
	_, err := c.FetchHistory(context.Background(), "nope", 7)
	re, ok := AsRemote(err)
	require.True(t, ok)
	require.Equal(t, "coin not found", re.Message)
	require.Equal(t, int32(1), calls.Load())
}

func TestClassifyTransportKeepsCancellation(t *testing.T) {
	err := classifyTransport("x", context.Canceled)
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, IsTransient(err))
}
