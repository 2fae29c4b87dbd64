package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/aristath/folio/internal/domain"
)

const maxRankPenalty = 20

func searchKey(query string) string {
	return "search:" + strings.ToLower(query)
}

// ResolveSearch searches every searchable source in priority order, scores
// and deduplicates the results, prices the top results that came without a
// price, and sorts priced results ahead of unpriced ones.
//
// When every searcher fails, the last cached result for the query is served.
func (r *Resolver) ResolveSearch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := searchKey(query)

	var cached []domain.SearchResult
	if r.rc.Cache.Get(key, r.opts.SearchMaxAge, &cached) {
		return cached, nil
	}

	var (
		collected []domain.SearchResult
		succeeded int
	)
	for _, s := range r.searchers {
		if !r.rc.Limiter.Allow(s.name) {
			r.log.Debug().Str("source", s.name).Str("query", query).Msg("Rate limited, skipping searcher")
			continue
		}

		results, err := r.search(ctx, s, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.log.Warn().Err(err).Str("source", s.name).Str("query", query).Msg("Search failed, trying next")
			continue
		}
		succeeded++

		for rank, res := range results {
			if res.Source == "" {
				res.Source = s.name
			}
			res.Relevance = scoreResult(query, res, rank)
			collected = append(collected, res)
		}
	}

	if succeeded == 0 {
		if r.rc.Cache.GetStale(key, &cached) {
			return cached, nil
		}
		return nil, nil
	}

	merged := Deduplicate(collected)

	// price the most relevant results first
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Relevance > merged[j].Relevance
	})
	if err := r.priceTop(ctx, merged); err != nil {
		return nil, err
	}

	SortResults(merged)

	if err := r.rc.Cache.Set(key, merged, "search"); err != nil {
		r.log.Warn().Err(err).Str("query", query).Msg("Failed to cache search results")
	}
	return merged, nil
}

func (r *Resolver) search(ctx context.Context, s namedSearcher, query string) ([]domain.SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.UpstreamTimeout)
	defer cancel()
	return s.Search(callCtx, query)
}

// priceTop resolves a quote for each of the first SearchPriceLimit results
// that lack a usable price.
func (r *Resolver) priceTop(ctx context.Context, results []domain.SearchResult) error {
	limit := r.opts.SearchPriceLimit
	if limit > len(results) {
		limit = len(results)
	}

	for i := 0; i < limit; i++ {
		if results[i].HasPrice() {
			continue
		}
		q, err := r.ResolveQuote(ctx, results[i].Identifier)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			continue
		}
		if q == nil {
			continue
		}
		price := q.Price
		results[i].Price = &price
		if results[i].Currency == "" {
			results[i].Currency = q.Currency
		}
	}
	return nil
}

// scoreResult rates how well a result matches the query on a 0..100 scale.
// A larger relevance supplied by the source itself wins.
func scoreResult(query string, res domain.SearchResult, rank int) int {
	q := strings.ToUpper(strings.TrimSpace(query))
	id := strings.ToUpper(res.Identifier)
	symbol := strings.ToUpper(res.Symbol)
	name := strings.ToUpper(res.Name)

	var score int
	switch {
	case id == q || symbol == q || strings.EqualFold(res.ISIN, q):
		score = 100
	case (symbol != "" && strings.HasPrefix(symbol, q)) || strings.HasPrefix(id, q):
		score = 85
	case strings.HasPrefix(name, q):
		score = 75
	case strings.Contains(name, q):
		score = 60
	default:
		score = 40
	}

	if rank > maxRankPenalty {
		rank = maxRankPenalty
	}
	score -= rank

	if res.Type == "DERIVATIVE" || domain.IsDerivativeName(res.Name) {
		score -= 30
	}
	if score < 0 {
		score = 0
	}

	if res.Relevance > score {
		return res.Relevance
	}
	return score
}

// dedupeKey identifies a result case-insensitively by ISIN when known, so
// one instrument found by ticker and by ISIN collapses to a single result.
// Otherwise it uses the identifier, then the symbol.
func dedupeKey(res domain.SearchResult) string {
	if res.ISIN != "" {
		return strings.ToUpper(res.ISIN)
	}
	if res.Identifier != "" {
		return strings.ToUpper(res.Identifier)
	}
	return strings.ToUpper(res.Symbol)
}

// Deduplicate keeps one result per instrument: the one with the highest
// relevance, or the first seen on a tie. First-seen order is preserved.
func Deduplicate(results []domain.SearchResult) []domain.SearchResult {
	index := make(map[string]int, len(results))
	out := make([]domain.SearchResult, 0, len(results))

	for _, res := range results {
		key := dedupeKey(res)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			if res.Relevance > out[i].Relevance {
				out[i] = res
			}
			continue
		}
		index[key] = len(out)
		out = append(out, res)
	}
	return out
}

// SortResults orders results carrying a usable price before those without
// one, and by descending relevance within each group.
func SortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := results[i].HasPrice(), results[j].HasPrice()
		if pi != pj {
			return pi
		}
		return results[i].Relevance > results[j].Relevance
	})
}
