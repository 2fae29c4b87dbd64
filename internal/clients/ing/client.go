// Package ing provides a quote source for ISIN-identified instruments traded
// through ING's securities API. Responses are loosely shaped, so fields are
// pulled out with JSONPath instead of fixed structs.
package ing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SourceName identifies this source in caches, rate limits and quotes.
const SourceName = "ing"

const defaultBaseURL = "https://component-api.wertpapiere.ing.de/api/v1"

// supportedCountries are the ISIN prefixes ING lists instruments for.
var supportedCountries = map[string]bool{
	"DE": true, "AT": true, "CH": true, "FR": true, "NL": true, "BE": true,
	"IE": true, "LU": true, "IT": true, "ES": true, "FI": true, "DK": true,
	"SE": true, "NO": true, "GB": true, "US": true,
}

// Client for the ING instrument API
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new ING client. An empty baseURL selects the public endpoint.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", SourceName).Logger(),
		now:        time.Now,
	}
}

// Name returns the source name.
func (c *Client) Name() string {
	return SourceName
}

// Supports accepts ISINs from the listed countries only.
func (c *Client) Supports(identifier string) bool {
	return supportedCountries[domain.ISINCountry(identifier)]
}

// FetchQuote returns the latest quote for an ISIN.
// Returns nil, nil when ING has no instrument under that ISIN.
func (c *Client) FetchQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	isin := domain.NormalizeIdentifier(identifier)
	if !c.Supports(isin) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedIdentifier, identifier)
	}

	doc, err := c.doRequest(ctx, "/instruments/"+url.PathEscape(isin)+"/quote")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	last := decimalAt(doc, "$.price")
	bid := decimalAt(doc, "$.bid")
	ask := decimalAt(doc, "$.ask")

	price, ok := domain.BestAvailablePrice(last, bid, ask)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoPrice, isin)
	}

	reported := stringAt(doc, "$.currency")
	price, currency := domain.NormalizePence(price, reported)
	// every field of one quote is in the same unit
	scale := func(d *decimal.Decimal) *decimal.Decimal {
		if d == nil {
			return nil
		}
		v, _ := domain.NormalizePence(*d, reported)
		return &v
	}

	return &domain.Quote{
		Identifier:    isin,
		Symbol:        stringAt(doc, "$.instrument.wkn"),
		Name:          stringAt(doc, "$.instrument.name"),
		Currency:      domain.InferCurrency(isin, currency),
		Source:        SourceName,
		Price:         price,
		Bid:           scale(bid),
		Ask:           scale(ask),
		High:          scale(decimalAt(doc, "$.high")),
		Low:           scale(decimalAt(doc, "$.low")),
		PreviousClose: scale(decimalAt(doc, "$.close")),
		CapturedAt:    c.now(),
	}, nil
}

// Requests is one call per ISIN.
func (c *Client) Requests(identifiers []string) int {
	return len(identifiers)
}

// FetchBatch has no batch endpoint to call, so it quotes each ISIN in turn.
// It stops early only when ctx is done.
func (c *Client) FetchBatch(ctx context.Context, identifiers []string) (map[string]*domain.Quote, error) {
	results := make(map[string]*domain.Quote, len(identifiers))
	var lastErr error

	for _, id := range identifiers {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		q, err := c.FetchQuote(ctx, id)
		if err != nil {
			c.log.Warn().Err(err).Str("identifier", id).Msg("ING quote failed")
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

// Search looks up instruments by name, WKN or ISIN.
// Leveraged products are kept but marked through their Type.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	doc, err := c.doRequest(ctx, "/instrument-search?query="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	raw, err := jsonpath.Get("$.instruments[*]", doc)
	if err != nil {
		return nil, nil
	}
	items, _ := raw.([]interface{})

	results := make([]domain.SearchResult, 0, len(items))
	for _, item := range items {
		isin := strings.ToUpper(stringAt(item, "$.isin"))
		if !domain.IsISIN(isin) {
			continue
		}
		name := stringAt(item, "$.name")
		typ := stringAt(item, "$.instrumentType")
		if domain.IsDerivativeName(name) && typ == "" {
			typ = "DERIVATIVE"
		}

		r := domain.SearchResult{
			Identifier: isin,
			ISIN:       isin,
			Symbol:     stringAt(item, "$.wkn"),
			Name:       name,
			Exchange:   stringAt(item, "$.exchange"),
			Type:       typ,
			Currency:   domain.InferCurrency(isin, stringAt(item, "$.currency")),
			Source:     SourceName,
		}
		if p := decimalAt(item, "$.price"); p != nil && p.IsPositive() {
			r.Price = p
		}
		results = append(results, r)
	}
	return results, nil
}

// doRequest fetches path and decodes it into a generic document with
// json.Number for every number, so prices keep their exact decimal digits.
// A 404 is reported as nil, nil.
func (c *Client) doRequest(ctx context.Context, path string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("path", path).Msg("Requesting ING")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ing: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ing status %d", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: ing: failed to read response: %v", domain.ErrUpstream, err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: ing: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return doc, nil
}

// valueAt evaluates a JSONPath expression, unwrapping single-element results.
func valueAt(doc interface{}, path string) interface{} {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		v = list[0]
	}
	return v
}

func stringAt(doc interface{}, path string) string {
	switch v := valueAt(doc, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// decimalAt reads a number at path. ING sometimes sends numbers as strings
// with a decimal comma.
func decimalAt(doc interface{}, path string) *decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := valueAt(doc, path).(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if strings.Contains(s, ",") && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		}
		d, err = decimal.NewFromString(s)
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &d
}
