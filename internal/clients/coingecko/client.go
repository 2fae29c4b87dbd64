// Package coingecko provides a quote source for crypto assets.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SourceName identifies this source in caches, rate limits and quotes.
const SourceName = "coingecko"

const (
	defaultBaseURL    = "https://api.coingecko.com/api/v3"
	defaultVsCurrency = "EUR"
)

// Client for the Coingecko public API
type Client struct {
	baseURL    string
	vsCurrency string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Coingecko client. vsCurrency is the fiat currency
// used for bare symbols such as "BTC"; pairs like "BTC-USD" carry their own.
func NewClient(baseURL, vsCurrency string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if code, ok := domain.NormalizeCurrency(vsCurrency); ok {
		vsCurrency = code
	} else {
		vsCurrency = defaultVsCurrency
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: vsCurrency,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", SourceName).Logger(),
		now:        time.Now,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return SourceName
}

// Supports accepts known crypto symbols and symbol-fiat pairs.
func (c *Client) Supports(identifier string) bool {
	return domain.IsCrypto(identifier)
}

// FetchQuote returns the latest price for one crypto identifier.
func (c *Client) FetchQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	quotes, err := c.FetchBatch(ctx, []string{identifier})
	if err != nil {
		return nil, err
	}
	return quotes[domain.NormalizeIdentifier(identifier)], nil
}

// FetchBatch prices every identifier with a single /simple/price call.
func (c *Client) FetchBatch(ctx context.Context, identifiers []string) (map[string]*domain.Quote, error) {
	type target struct {
		id     string
		coinID string
		symbol string
		vs     string
	}

	targets := make([]target, 0, len(identifiers))
	coinSet := make(map[string]bool)
	vsSet := make(map[string]bool)

	for _, raw := range identifiers {
		id := domain.NormalizeIdentifier(raw)
		base, quote, ok := domain.CryptoBase(id)
		if !ok {
			c.log.Debug().Str("identifier", id).Msg("Not a crypto identifier, skipping")
			continue
		}
		if quote == "" {
			quote = c.vsCurrency
		}
		coinID := domain.CoinIDs[base]
		targets = append(targets, target{id: id, coinID: coinID, symbol: base, vs: quote})
		coinSet[coinID] = true
		vsSet[strings.ToLower(quote)] = true
	}

	results := make(map[string]*domain.Quote, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(sortedKeys(coinSet), ","))
	params.Set("vs_currencies", strings.Join(sortedKeys(vsSet), ","))

	// coin id -> lower-case fiat code -> price
	var prices map[string]map[string]decimal.Decimal
	if err := c.doRequest(ctx, "/simple/price", params, &prices); err != nil {
		return nil, err
	}

	now := c.now()
	for _, t := range targets {
		price, ok := prices[t.coinID][strings.ToLower(t.vs)]
		if !ok || !price.IsPositive() {
			c.log.Debug().Str("identifier", t.id).Str("vs", t.vs).Msg("No price in response")
			continue
		}
		results[t.id] = &domain.Quote{
			Identifier: t.id,
			Symbol:     t.symbol,
			Name:       t.coinID,
			Currency:   t.vs,
			Source:     SourceName,
			Price:      price,
			CapturedAt: now,
		}
	}
	return results, nil
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Symbol        string `json:"symbol"`
		MarketCapRank int    `json:"market_cap_rank"`
	} `json:"coins"`
}

// Search looks up coins by name or symbol.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp searchResponse
	if err := c.doRequest(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		symbol := strings.ToUpper(coin.Symbol)
		if symbol == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Identifier: symbol,
			Symbol:     symbol,
			Name:       coin.Name,
			Type:       "CRYPTOCURRENCY",
			Currency:   c.vsCurrency,
			Source:     SourceName,
		})
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("path", path).Msg("Requesting Coingecko")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: coingecko: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: coingecko status %d", domain.ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: coingecko: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
