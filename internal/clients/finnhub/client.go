// Package finnhub provides a quote source backed by the Finnhub REST API.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SourceName identifies this source in caches, rate limits and quotes.
const SourceName = "finnhub"

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client for the Finnhub API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Finnhub client. Without an apiKey the client
// supports nothing, so the resolver skips it.
func NewClient(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", SourceName).Logger(),
		now:        time.Now,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return SourceName
}

// Supports accepts ticker-shaped identifiers when an API key is configured.
func (c *Client) Supports(identifier string) bool {
	return c.apiKey != "" && domain.Classify(identifier) == domain.KindTicker
}

// quoteResponse is the /quote payload. Finnhub answers unknown symbols with
// all-zero fields rather than an error.
type quoteResponse struct {
	Current       decimal.Decimal `json:"c"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	Open          decimal.Decimal `json:"o"`
	PreviousClose decimal.Decimal `json:"pc"`
	Timestamp     int64           `json:"t"`
}

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// FetchQuote returns the latest quote for a ticker.
// Returns nil, nil when Finnhub reports no price for the symbol.
func (c *Client) FetchQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	symbol := domain.NormalizeIdentifier(identifier)
	if !c.Supports(symbol) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedIdentifier, identifier)
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var resp quoteResponse
	if err := c.doRequest(ctx, "/quote", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Current.IsPositive() {
		return nil, nil
	}

	var tradedAt *time.Time
	if resp.Timestamp > 0 {
		t := time.Unix(resp.Timestamp, 0).UTC()
		tradedAt = &t
	}

	return &domain.Quote{
		Identifier:    symbol,
		Symbol:        symbol,
		Currency:      domain.InferCurrency(symbol, ""),
		Source:        SourceName,
		Price:         resp.Current,
		High:          positiveOrNil(resp.High),
		Low:           positiveOrNil(resp.Low),
		PreviousClose: positiveOrNil(resp.PreviousClose),
		TradedAt:      tradedAt,
		CapturedAt:    c.now(),
	}, nil
}

// Requests is one call per symbol.
func (c *Client) Requests(identifiers []string) int {
	return len(identifiers)
}

// FetchBatch quotes each symbol in turn; Finnhub has no multi-symbol quote.
func (c *Client) FetchBatch(ctx context.Context, identifiers []string) (map[string]*domain.Quote, error) {
	results := make(map[string]*domain.Quote, len(identifiers))
	var lastErr error

	for _, id := range identifiers {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		q, err := c.FetchQuote(ctx, id)
		if err != nil {
			c.log.Warn().Err(err).Str("identifier", id).Msg("Finnhub quote failed")
			lastErr = err
			continue
		}
		if q != nil {
			results[q.Identifier] = q
		}
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return results, nil
}

// Search looks up symbols by free text.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)

	var resp searchResponse
	if err := c.doRequest(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		symbol := strings.ToUpper(r.Symbol)
		if symbol == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Identifier: symbol,
			Symbol:     symbol,
			Name:       r.Description,
			Type:       r.Type,
			Currency:   domain.InferCurrency(symbol, ""),
			Source:     SourceName,
		})
	}
	return results, nil
}

// doRequest performs an authenticated GET and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, path string, params url.Values, dst interface{}) error {
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().Str("path", path).Msg("Requesting Finnhub")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: finnhub: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: finnhub status %d", domain.ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: finnhub: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}

func positiveOrNil(d decimal.Decimal) *decimal.Decimal {
	if !d.IsPositive() {
		return nil
	}
	return &d
}
