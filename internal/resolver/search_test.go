package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/domain"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDeduplicate_KeepsHighestRelevance(t *testing.T) {
	in := []domain.SearchResult{
		{Identifier: "AAPL", Source: "ing", Relevance: 40},
		{Identifier: "aapl", Source: "yahoo", Relevance: 90},
		{Identifier: "MSFT", Source: "yahoo", Relevance: 70},
	}

	out := Deduplicate(in)
	require.Len(t, out, 2)
	assert.Equal(t, "yahoo", out[0].Source)
	assert.Equal(t, 90, out[0].Relevance)
	assert.Equal(t, "MSFT", out[1].Identifier)
}

func TestDeduplicate_TieKeepsFirstSeen(t *testing.T) {
	out := Deduplicate([]domain.SearchResult{
		{Identifier: "SAP.DE", Source: "first", Relevance: 80},
		{Identifier: "SAP.DE", Source: "second", Relevance: 80},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Source)
}

func TestDeduplicate_FallsBackToSymbol(t *testing.T) {
	out := Deduplicate([]domain.SearchResult{
		{Symbol: "BTC", Source: "a", Relevance: 10},
		{Symbol: "btc", Source: "b", Relevance: 20},
		{Source: "nameless"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Source)
}

func TestSortResults_PricedFirst(t *testing.T) {
	results := []domain.SearchResult{
		{Identifier: "NOPRICE", Relevance: 100},
		{Identifier: "PRICED", Relevance: 70, Price: price("12.5")},
		{Identifier: "ZERO", Relevance: 95, Price: price("0")},
		{Identifier: "PRICED2", Relevance: 80, Price: price("3")},
	}

	SortResults(results)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Identifier)
	}
	assert.Equal(t, []string{"PRICED2", "PRICED", "NOPRICE", "ZERO"}, ids)
}

func TestScoreResult(t *testing.T) {
	tests := []struct {
		name  string
		query string
		res   domain.SearchResult
		rank  int
		want  int
	}{
		{"exact symbol", "aapl", domain.SearchResult{Identifier: "AAPL", Name: "Apple Inc."}, 0, 100},
		{"exact isin", "US0378331005", domain.SearchResult{Identifier: "AAPL", ISIN: "US0378331005"}, 0, 100},
		{"symbol prefix", "AAP", domain.SearchResult{Identifier: "AAPL", Symbol: "AAPL"}, 0, 85},
		{"name prefix", "apple", domain.SearchResult{Identifier: "AAPL", Name: "Apple Inc."}, 0, 75},
		{"name contains", "inc", domain.SearchResult{Identifier: "AAPL", Name: "Apple Inc."}, 0, 60},
		{"weak", "zzz", domain.SearchResult{Identifier: "AAPL", Name: "Apple Inc."}, 0, 40},
		{"rank penalty", "apple", domain.SearchResult{Identifier: "AAPL", Name: "Apple Inc."}, 5, 70},
		{"rank penalty capped", "zzz", domain.SearchResult{Identifier: "AAPL"}, 50, 20},
		{"derivative", "apple", domain.SearchResult{Identifier: "DE000XYZ", Name: "Apple Turbo Long"}, 0, 45},
		{"derivative type", "apple", domain.SearchResult{Identifier: "X", Name: "Apple", Type: "DERIVATIVE"}, 0, 45},
		{"floored", "zzz", domain.SearchResult{Identifier: "X", Type: "DERIVATIVE"}, 20, 0},
		{"source relevance wins", "zzz", domain.SearchResult{Identifier: "X", Relevance: 99}, 0, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreResult(tt.query, tt.res, tt.rank))
		})
	}
}

func TestResolveSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.resolver().ResolveSearch(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestResolveSearch_MergesSourcesAndPricesTop(t *testing.T) {
	f := newFixture(t, nil)
	yahoo := testingpkg.NewMockSearchSource("yahoo")
	ing := testingpkg.NewMockSearchSource("ing")

	yahoo.On("Search", mock.Anything, "apple").Return([]domain.SearchResult{
		{Identifier: "AAPL", Symbol: "AAPL", Name: "Apple Inc."},
		{Identifier: "APLE", Symbol: "APLE", Name: "Apple Hospitality REIT"},
	}, nil).Once()
	ing.On("Search", mock.Anything, "apple").Return([]domain.SearchResult{
		{Identifier: "US0378331005", ISIN: "US0378331005", Name: "Apple Inc.", Price: price("171.2"), Currency: "EUR"},
	}, nil).Once()

	yahoo.On("FetchQuote", mock.Anything, "AAPL").Return(quote("AAPL", "yahoo", "190"), nil).Once()
	yahoo.On("FetchQuote", mock.Anything, "APLE").Return(nil, errBoom)
	ing.On("FetchQuote", mock.Anything, "APLE").Return(nil, nil)

	results, err := f.resolver(yahoo, ing).ResolveSearch(context.Background(), " apple ")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// priced results first: AAPL got priced via the waterfall
	assert.True(t, results[0].HasPrice())
	assert.True(t, results[1].HasPrice())
	assert.Equal(t, "APLE", results[2].Identifier)
	assert.False(t, results[2].HasPrice())

	for _, r := range results {
		if r.Identifier == "AAPL" {
			assert.Equal(t, "yahoo", r.Source)
			assert.Equal(t, "USD", r.Currency)
		}
	}
	ing.AssertNotCalled(t, "FetchQuote", mock.Anything, "US0378331005")
}

func TestResolveSearch_CachesResults(t *testing.T) {
	f := newFixture(t, nil)
	yahoo := testingpkg.NewMockSearchSource("yahoo")
	yahoo.On("Search", mock.Anything, "SAP").Return([]domain.SearchResult{
		{Identifier: "SAP.DE", Name: "SAP SE", Price: price("180")},
	}, nil).Once()

	r := f.resolver(yahoo)

	_, err := r.ResolveSearch(context.Background(), "SAP")
	require.NoError(t, err)
	second, err := r.ResolveSearch(context.Background(), "sap")
	require.NoError(t, err)
	require.Len(t, second, 1)

	yahoo.AssertNumberOfCalls(t, "Search", 1)
}

func TestResolveSearch_AllSearchersFail(t *testing.T) {
	f := newFixture(t, nil)
	yahoo := testingpkg.NewMockSearchSource("yahoo")
	yahoo.On("Search", mock.Anything, "SAP").Return([]domain.SearchResult{
		{Identifier: "SAP.DE", Name: "SAP SE", Price: price("180")},
	}, nil).Once()
	yahoo.On("Search", mock.Anything, mock.Anything).Return(nil, errBoom)

	r := f.resolver(yahoo)

	_, err := r.ResolveSearch(context.Background(), "SAP")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(time.Hour)

	stale, err := r.ResolveSearch(context.Background(), "SAP")
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "SAP.DE", stale[0].Identifier)

	res, err := r.ResolveSearch(context.Background(), "never seen")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveSearch_RateLimitedSearcherSkipped(t *testing.T) {
	f := newFixture(t, map[string]cache.Limit{"ing": {Max: 1, Window: time.Minute}})
	require.True(t, f.limiter.Allow("ing"))

	ing := testingpkg.NewMockSearchSource("ing")
	yahoo := testingpkg.NewMockSearchSource("yahoo")
	yahoo.On("Search", mock.Anything, "SAP").Return([]domain.SearchResult{
		{Identifier: "SAP.DE", Name: "SAP SE", Price: price("180")},
	}, nil).Once()

	results, err := f.resolver(ing, yahoo).ResolveSearch(context.Background(), "SAP")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "yahoo", results[0].Source)
	ing.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestDeduplicate_PrefersISIN(t *testing.T) {
	out := Deduplicate([]domain.SearchResult{
		{Identifier: "US0378331005", ISIN: "US0378331005", Source: "ing", Relevance: 60},
		{Identifier: "AAPL", Symbol: "AAPL", ISIN: "us0378331005", Source: "yahoo", Relevance: 90},
		{Identifier: "APC.DE", Symbol: "APC.DE", Source: "yahoo", Relevance: 50},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "yahoo", out[0].Source, "the better ranked listing of the instrument wins")
	assert.Equal(t, "AAPL", out[0].Identifier)
	assert.Equal(t, "APC.DE", out[1].Identifier)
}

func TestResolveSearch_ISINQueryCollapsesAcrossSources(t *testing.T) {
	f := newFixture(t, nil)
	yahoo := testingpkg.NewMockSearchSource("yahoo")
	ing := testingpkg.NewMockSearchSource("ing")

	yahoo.On("Search", mock.Anything, "US0378331005").Return([]domain.SearchResult{
		{Identifier: "AAPL", Symbol: "AAPL", ISIN: "US0378331005", Name: "Apple Inc.", Price: price("190")},
	}, nil).Once()
	ing.On("Search", mock.Anything, "US0378331005").Return([]domain.SearchResult{
		{Identifier: "US0378331005", ISIN: "US0378331005", Name: "Apple Inc.", Price: price("171.2"), Currency: "EUR"},
	}, nil).Once()

	results, err := f.resolver(yahoo, ing).ResolveSearch(context.Background(), "US0378331005")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
