package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("", "eur", time.Second, zerolog.Nop())
	client.baseURL = server.URL
	return client
}

func TestNewClient_VsCurrency(t *testing.T) {
	assert.Equal(t, "USD", NewClient("", "usd", 0, zerolog.Nop()).vsCurrency)
	assert.Equal(t, "EUR", NewClient("", "", 0, zerolog.Nop()).vsCurrency)
	assert.Equal(t, "EUR", NewClient("", "bogus", 0, zerolog.Nop()).vsCurrency)
}

func TestSupports(t *testing.T) {
	client := NewClient("", "", 0, zerolog.Nop())
	assert.True(t, client.Supports("BTC"))
	assert.True(t, client.Supports("eth-usd"))
	assert.False(t, client.Supports("AAPL"))
	assert.False(t, client.Supports("US0378331005"))
}

func TestFetchBatch_SingleRequest(t *testing.T) {
	requests := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "eur,usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"eur":58000.5,"usd":63000.25},"ethereum":{"eur":2900.1,"usd":3150}}`))
	})

	quotes, err := client.FetchBatch(context.Background(), []string{"BTC", "ETH-USD", "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	require.Len(t, quotes, 2)

	btc := quotes["BTC"]
	require.NotNil(t, btc)
	assert.Equal(t, "EUR", btc.Currency)
	assert.Equal(t, "bitcoin", btc.Name)
	assert.Equal(t, SourceName, btc.Source)
	assert.True(t, btc.Price.Equal(decimal.RequireFromString("58000.5")))

	eth := quotes["ETH-USD"]
	require.NotNil(t, eth)
	assert.Equal(t, "USD", eth.Currency)
	assert.True(t, eth.Price.Equal(decimal.NewFromInt(3150)))
}

func TestFetchBatch_NothingToFetch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	quotes, err := client.FetchBatch(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestFetchQuote_MissingPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	quote, err := client.FetchQuote(context.Background(), "SOL")
	assert.NoError(t, err)
	assert.Nil(t, quote)
}

func TestFetchQuote_RateLimitedUpstream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	quote, err := client.FetchQuote(context.Background(), "BTC")
	assert.Nil(t, quote)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "bit", r.URL.Query().Get("query"))
		w.Write([]byte(`{"coins":[
			{"id":"bitcoin","name":"Bitcoin","symbol":"btc","market_cap_rank":1},
			{"id":"bitcoin-cash","name":"Bitcoin Cash","symbol":"bch","market_cap_rank":20}
		]}`))
	})

	results, err := client.Search(context.Background(), "bit")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "BTC", results[0].Identifier)
	assert.Equal(t, "Bitcoin", results[0].Name)
	assert.Equal(t, "CRYPTOCURRENCY", results[0].Type)
	assert.Equal(t, SourceName, results[1].Source)
}
