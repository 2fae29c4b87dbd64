package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/scheduler"
	testingpkg "github.com/aristath/folio/internal/testing"
)

type noopJob struct{}

func (noopJob) Name() string { return "snapshot_refresh" }
func (noopJob) Run() error   { return nil }

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	store, err := cache.New(cache.Options{MaxEntries: 10, TTL: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Set("quote:AAPL", "cached", "yahoo"))

	limiter := cache.NewRateLimiter(map[string]cache.Limit{
		"yahoo": {Max: 100, Window: time.Minute},
	}, nil)
	require.True(t, limiter.Allow("yahoo"))

	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("@every 15m", noopJob{}))

	db := testingpkg.NewTestDB(t, "snapshots", "")

	s := New(Config{
		Log:        zerolog.Nop(),
		DevMode:    true,
		Resolver:   new(testingpkg.MockQuoteResolver),
		Cache:      store,
		Limiter:    limiter,
		Scheduler:  sched,
		SnapshotDB: db,
		Sources:    []string{"ing", "yahoo"},
	})

	rec := do(t, s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"ing", "yahoo"}, resp.Sources)

	require.NotNil(t, resp.Cache)
	assert.Equal(t, 1, resp.Cache.Size)
	assert.Equal(t, 10, resp.Cache.MaxEntries)

	require.Len(t, resp.RateLimits, 1)
	assert.Equal(t, "yahoo", resp.RateLimits[0].Source)
	assert.Equal(t, 1, resp.RateLimits[0].Count)

	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "snapshot_refresh", resp.Jobs[0].Name)

	require.NotNil(t, resp.SnapshotDB)
	assert.Positive(t, resp.SnapshotDB.PageSize)
	assert.Positive(t, resp.Host.Goroutines)
}

func TestSystemHandlers_OptionalComponents(t *testing.T) {
	h := NewSystemHandlers(SystemDeps{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.Cache)
	assert.Nil(t, resp.SnapshotDB)
	assert.Empty(t, resp.Jobs)
	assert.NotNil(t, resp.RateLimits)
	assert.NotNil(t, resp.Sources)
}
