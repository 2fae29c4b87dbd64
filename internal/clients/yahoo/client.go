// Package yahoo provides a quote source backed by the Yahoo Finance JSON API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SourceName identifies this source in caches, rate limits and quotes.
const SourceName = "yahoo"

const (
	defaultBaseURL  = "https://query1.finance.yahoo.com"
	maxBatchSymbols = 50
	defaultCrypto   = "EUR"
	userAgent       = "Mozilla/5.0 (compatible; folio/1.0)"
)

// Client for the Yahoo Finance quote and search endpoints
type Client struct {
	baseURL    string
	cryptoFiat string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Yahoo Finance client.
// An empty baseURL selects the public endpoint. cryptoFiat is the currency
// bare crypto symbols are quoted in ("BTC" becomes "BTC-EUR"), matching the
// Coingecko source so a symbol keeps one currency whichever source answers.
func NewClient(baseURL, cryptoFiat string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if code, ok := domain.NormalizeCurrency(cryptoFiat); ok {
		cryptoFiat = code
	} else {
		cryptoFiat = defaultCrypto
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cryptoFiat: cryptoFiat,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", SourceName).Logger(),
		now:        time.Now,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return SourceName
}

// Supports accepts tickers, ISINs (resolved through search) and crypto symbols.
func (c *Client) Supports(identifier string) bool {
	return domain.Classify(identifier) != domain.KindUnknown
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"quoteResponse"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteResult struct {
	Symbol                     string           `json:"symbol"`
	ShortName                  string           `json:"shortName"`
	LongName                   string           `json:"longName"`
	Currency                   string           `json:"currency"`
	FullExchangeName           string           `json:"fullExchangeName"`
	RegularMarketPrice         *decimal.Decimal `json:"regularMarketPrice"`
	Bid                        *decimal.Decimal `json:"bid"`
	Ask                        *decimal.Decimal `json:"ask"`
	RegularMarketDayHigh       *decimal.Decimal `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *decimal.Decimal `json:"regularMarketDayLow"`
	RegularMarketPreviousClose *decimal.Decimal `json:"regularMarketPreviousClose"`
}

type searchResponse struct {
	Quotes []searchQuote `json:"quotes"`
}

type searchQuote struct {
	Symbol    string  `json:"symbol"`
	ShortName string  `json:"shortname"`
	LongName  string  `json:"longname"`
	Exchange  string  `json:"exchDisp"`
	QuoteType string  `json:"quoteType"`
	Score     float64 `json:"score"`
}

// FetchQuote returns the latest quote for one identifier.
// Returns nil, nil when Yahoo does not know the symbol.
func (c *Client) FetchQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	quotes, err := c.FetchBatch(ctx, []string{identifier})
	if err != nil {
		return nil, err
	}
	return quotes[domain.NormalizeIdentifier(identifier)], nil
}

// Requests counts one search per ISIN plus one quote call per 50 identifiers.
func (c *Client) Requests(identifiers []string) int {
	if len(identifiers) == 0 {
		return 0
	}
	n := (len(identifiers) + maxBatchSymbols - 1) / maxBatchSymbols
	for _, id := range identifiers {
		if domain.Classify(id) == domain.KindISIN {
			n++
		}
	}
	return n
}

// FetchBatch prices identifiers in chunks of up to 50 symbols per request.
// The returned map is keyed by the normalized identifier.
func (c *Client) FetchBatch(ctx context.Context, identifiers []string) (map[string]*domain.Quote, error) {
	// Yahoo symbol -> requested identifiers
	bySymbol := make(map[string][]string)
	symbols := make([]string, 0, len(identifiers))

	for _, raw := range identifiers {
		id := domain.NormalizeIdentifier(raw)
		symbol, err := c.symbolFor(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("identifier", id).Msg("Failed to resolve Yahoo symbol")
			continue
		}
		if symbol == "" {
			continue
		}
		if _, seen := bySymbol[symbol]; !seen {
			symbols = append(symbols, symbol)
		}
		bySymbol[symbol] = append(bySymbol[symbol], id)
	}

	results := make(map[string]*domain.Quote, len(identifiers))
	var lastErr error
	failed := 0
	chunks := 0

	for start := 0; start < len(symbols); start += maxBatchSymbols {
		end := start + maxBatchSymbols
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks++

		quotes, err := c.fetchQuotes(ctx, symbols[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Int("symbols", end-start).Msg("Yahoo quote request failed")
			lastErr = err
			failed++
			continue
		}

		for _, r := range quotes {
			for _, id := range bySymbol[strings.ToUpper(r.Symbol)] {
				q, err := c.toQuote(id, r)
				if err != nil {
					c.log.Debug().Err(err).Str("identifier", id).Msg("Skipping quote")
					continue
				}
				results[id] = q
			}
		}
	}

	if chunks > 0 && failed == chunks {
		return nil, lastErr
	}
	return results, nil
}

// Search looks up instruments by free text.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	quotes, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}

	// every listing an ISIN query returns is that instrument
	isin := domain.NormalizeIdentifier(query)
	if !domain.IsISIN(isin) {
		isin = ""
	}

	results := make([]domain.SearchResult, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		symbol := strings.ToUpper(q.Symbol)
		results = append(results, domain.SearchResult{
			Identifier: symbol,
			Symbol:     symbol,
			ISIN:       isin,
			Name:       name,
			Exchange:   q.Exchange,
			Type:       q.QuoteType,
			Currency:   domain.InferCurrency(symbol, ""),
			Source:     SourceName,
		})
	}
	return results, nil
}

// symbolFor maps an identifier to the symbol Yahoo quotes it under.
func (c *Client) symbolFor(ctx context.Context, id string) (string, error) {
	switch domain.Classify(id) {
	case domain.KindISIN:
		// Yahoo search accepts ISINs and returns the primary listing first
		quotes, err := c.search(ctx, id)
		if err != nil {
			return "", err
		}
		for _, q := range quotes {
			if q.Symbol != "" {
				return strings.ToUpper(q.Symbol), nil
			}
		}
		return "", nil
	case domain.KindCrypto:
		base, quote, _ := domain.CryptoBase(id)
		if quote == "" {
			quote = c.cryptoFiat
		}
		return base + "-" + quote, nil
	case domain.KindTicker:
		return id, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedIdentifier, id)
	}
}

func (c *Client) toQuote(id string, r quoteResult) (*domain.Quote, error) {
	price, ok := decimal.Zero, false
	if r.RegularMarketPrice != nil && r.RegularMarketPrice.IsPositive() {
		price, ok = *r.RegularMarketPrice, true
	} else {
		price, ok = domain.BestAvailablePrice(nil, r.Bid, r.Ask)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoPrice, r.Symbol)
	}

	price, currency := domain.NormalizePence(price, r.Currency)
	scale := func(d *decimal.Decimal) *decimal.Decimal {
		if d == nil {
			return nil
		}
		v, _ := domain.NormalizePence(*d, r.Currency)
		return &v
	}

	name := r.LongName
	if name == "" {
		name = r.ShortName
	}

	return &domain.Quote{
		Identifier:    id,
		Symbol:        strings.ToUpper(r.Symbol),
		Name:          name,
		Currency:      domain.InferCurrency(r.Symbol, currency),
		Source:        SourceName,
		Price:         price,
		Bid:           scale(r.Bid),
		Ask:           scale(r.Ask),
		High:          scale(r.RegularMarketDayHigh),
		Low:           scale(r.RegularMarketDayLow),
		PreviousClose: scale(r.RegularMarketPreviousClose),
		CapturedAt:    c.now(),
	}, nil
}

func (c *Client) fetchQuotes(ctx context.Context, symbols []string) ([]quoteResult, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))

	var resp quoteResponse
	if err := c.doRequest(ctx, "/v7/finance/quote?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("%w: yahoo: %s", domain.ErrUpstream, resp.QuoteResponse.Error.Description)
	}
	return resp.QuoteResponse.Result, nil
}

func (c *Client) search(ctx context.Context, query string) ([]searchQuote, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "10")
	params.Set("newsCount", "0")

	var resp searchResponse
	if err := c.doRequest(ctx, "/v1/finance/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

// doRequest performs a GET against the Yahoo API and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("path", path).Msg("Requesting Yahoo")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: yahoo: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: yahoo status %d: %s", domain.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: yahoo: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}
