package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db := testingpkg.NewTestDB(t, "snapshots", Schema)
	// migrations are repeatable
	require.NoError(t, db.Migrate(Schema))

	return NewRepository(db.Conn(), zerolog.Nop())
}

func snap(id, price string, at time.Time) *domain.Quote {
	return &domain.Quote{
		Identifier: id,
		Source:     "yahoo",
		Currency:   "EUR",
		Price:      decimal.RequireFromString(price),
		CapturedAt: at,
	}
}

func TestSaveAndLatest(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, snap("SAP.DE", "180.10", base)))
	require.NoError(t, repo.Save(ctx, snap("SAP.DE", "181.25", base.Add(time.Hour))))

	latest, err := repo.Latest(ctx, "sap.de")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "181.25", latest.Price.String())
	assert.Equal(t, "yahoo", latest.Source)
	assert.True(t, latest.CapturedAt.Equal(base.Add(time.Hour)))
}

func TestLatest_NotFound(t *testing.T) {
	repo := setupRepo(t)

	latest, err := repo.Latest(context.Background(), "AAPL")
	assert.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSave_RejectsUnpricedQuote(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Save(context.Background(), snap("AAPL", "0", base))
	assert.ErrorIs(t, err, domain.ErrNoPrice)

	assert.ErrorIs(t, repo.Save(context.Background(), nil), domain.ErrNoPrice)
}

func TestSave_SameInstantReplaces(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, snap("AAPL", "190", base)))
	require.NoError(t, repo.Save(ctx, snap("AAPL", "191", base)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveAll(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	saved, err := repo.SaveAll(ctx, map[string]*domain.Quote{
		"AAPL": snap("AAPL", "190", base),
		"MSFT": snap("MSFT", "410", base),
		"NONE": nil,
		"ZERO": snap("ZERO", "0", base),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	saved, err = repo.SaveAll(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, saved)
}

func TestHistory(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for i, p := range []string{"100", "101", "102", "103"} {
		require.NoError(t, repo.Save(ctx, snap("BTC", p, base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Save(ctx, snap("ETH", "3000", base.Add(2*time.Hour))))

	history, err := repo.History(ctx, "BTC", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "101", history[0].Price.String())
	assert.Equal(t, "103", history[2].Price.String())

	empty, err := repo.History(ctx, "DOGE", base)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, snap("AAPL", "180", base.Add(-48*time.Hour))))
	require.NoError(t, repo.Save(ctx, snap("AAPL", "185", base.Add(-24*time.Hour))))
	require.NoError(t, repo.Save(ctx, snap("AAPL", "190", base)))

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRefreshJob_Run(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	// an old snapshot that falls outside the retention window
	require.NoError(t, repo.Save(ctx, snap("AAPL", "150", base.Add(-100*24*time.Hour))))

	resolver := new(testingpkg.MockQuoteResolver)
	resolver.On("ResolveBatch", mock.Anything, []string{"AAPL", "MSFT", "SAP.DE"}, map[string]string(nil)).
		Return(map[string]*domain.Quote{
			"AAPL": snap("AAPL", "190", base),
			"MSFT": snap("MSFT", "410", base),
		}, nil).Once()

	job := NewRefreshJob(resolver, repo, RefreshConfig{
		Identifiers: []string{"AAPL", "MSFT", "SAP.DE"},
		Retention:   90 * 24 * time.Hour,
	}, zerolog.Nop())
	job.now = func() time.Time { return base }

	require.NoError(t, job.Run())
	resolver.AssertExpectations(t)
	assert.Equal(t, "snapshot_refresh", job.Name())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "old snapshot pruned, two new ones stored")

	latest, err := repo.Latest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "190", latest.Price.String())
}

func TestRefreshJob_ResolverError(t *testing.T) {
	repo := setupRepo(t)

	resolver := new(testingpkg.MockQuoteResolver)
	resolver.On("ResolveBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]*domain.Quote{}, context.DeadlineExceeded)

	job := NewRefreshJob(resolver, repo, RefreshConfig{Identifiers: []string{"AAPL"}}, zerolog.Nop())

	err := job.Run()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefreshJob_PruneOnly(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, snap("AAPL", "150", base.Add(-10*24*time.Hour))))

	resolver := new(testingpkg.MockQuoteResolver)
	job := NewRefreshJob(resolver, repo, RefreshConfig{Retention: 24 * time.Hour}, zerolog.Nop())
	job.now = func() time.Time { return base }

	require.NoError(t, job.RunContext(ctx))
	resolver.AssertNotCalled(t, "ResolveBatch", mock.Anything, mock.Anything, mock.Anything)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
