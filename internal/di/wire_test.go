package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:             t.TempDir(),
		Port:                8010,
		CoingeckoVsCurrency: "EUR",
		CacheMaxEntries:     100,
		CacheTTL:            5 * time.Minute,
		QuoteMaxAge:         time.Minute,
		SearchMaxAge:        5 * time.Minute,
		SearchPriceLimit:    10,
		UpstreamTimeout:     time.Second,
		RateLimits: map[string]config.RateLimit{
			config.SourceYahoo: {Max: 100, Window: time.Minute},
		},
		SnapshotSchedule:    "@every 15m",
		SnapshotIdentifiers: []string{"AAPL", "BTC"},
		SnapshotRetention:   24 * time.Hour,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.Cache)
	assert.NotNil(t, container.Limiter)
	assert.NotNil(t, container.Resolver)
	assert.NotNil(t, container.PortfolioService)
	assert.NotNil(t, container.SnapshotRepo)
	require.NotNil(t, container.Scheduler)

	require.NotNil(t, jobs.SnapshotRefresh)
	require.NotNil(t, jobs.WALCheckpoint)

	names := make([]string, 0)
	for _, j := range container.Scheduler.Jobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"snapshot_refresh", "wal_checkpoint"}, names)
	assert.FileExists(t, filepath.Join(cfg.DataDir, "snapshots.db"))
}

func TestWire_SnapshotRefreshDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotSchedule = ""

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Nil(t, jobs.SnapshotRefresh)
	require.Len(t, container.Scheduler.Jobs(), 1)
	assert.Equal(t, "wal_checkpoint", container.Scheduler.Jobs()[0].Name)
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotSchedule = "whenever"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWireCore(t *testing.T) {
	cfg := testConfig(t)

	container, err := WireCore(cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, container.Resolver)
	assert.Nil(t, container.SnapshotDB)
	assert.Nil(t, container.Scheduler)
	assert.NoError(t, container.Close())
	assert.NoFileExists(t, filepath.Join(cfg.DataDir, "snapshots.db"))
}

func TestInitializeServices_SourceOrder(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeServices(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"ing", "yahoo", "coingecko"}, container.SourceNames(),
		"finnhub is skipped without an API key")
	assert.Equal(t, container.SourceNames(), container.Resolver.SourceNames())

	cfg.FinnhubAPIKey = "key"
	container, err = InitializeServices(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"ing", "yahoo", "finnhub", "coingecko"}, container.SourceNames())
}

func TestInitializeServices_NilConfig(t *testing.T) {
	_, err := InitializeServices(nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(cfg.DataDir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.DataDir = blocker

	container, err := InitializeServices(cfg, zerolog.Nop())
	require.NoError(t, err)

	err = InitializeDatabases(container, cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container.SnapshotDB)
}

func TestRegisterJobs_RequiresStorage(t *testing.T) {
	cfg := testConfig(t)

	_, err := RegisterJobs(nil, cfg, zerolog.Nop())
	assert.Error(t, err)

	container, err := InitializeServices(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = RegisterJobs(container, cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWireCore_BareCryptoKeepsConfiguredCurrency(t *testing.T) {
	var (
		mu           sync.Mutex
		yahooSymbols []string
		yahooDown    atomic.Bool
	)
	yahooServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if yahooDown.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		mu.Lock()
		yahooSymbols = append(yahooSymbols, r.URL.Query().Get("symbols"))
		mu.Unlock()
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"BTC-EUR","currency":"EUR","regularMarketPrice":58000}]}}`))
	}))
	t.Cleanup(yahooServer.Close)

	coingeckoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eur", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"eur":57500}}`))
	}))
	t.Cleanup(coingeckoServer.Close)

	cfg := testConfig(t)
	cfg.YahooBaseURL = yahooServer.URL
	cfg.CoingeckoBaseURL = coingeckoServer.URL

	container, err := WireCore(cfg, zerolog.Nop())
	require.NoError(t, err)

	q, err := container.Resolver.ResolveQuote(context.Background(), "BTC")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "yahoo", q.Source)
	assert.Equal(t, "EUR", q.Currency)
	mu.Lock()
	assert.Equal(t, []string{"BTC-EUR"}, yahooSymbols)
	mu.Unlock()

	yahooDown.Store(true)
	container.Cache.Purge()

	q, err = container.Resolver.ResolveQuote(context.Background(), "BTC")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "coingecko", q.Source)
	assert.Equal(t, "EUR", q.Currency)
}
