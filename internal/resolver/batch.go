package resolver

import (
	"context"
	"sort"
	"sync"

	"github.com/aristath/folio/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ResolveBatch prices several identifiers with as few upstream calls as possible.
//
// Fresh cache hits are served directly. Misses are grouped by their best
// eligible source and each group is fetched with one FetchBatch call; groups
// for different sources run in parallel. A group is charged against its
// source's rate limit per upstream request, and whatever does not fit the
// remaining budget is left for the next source. Identifiers a group failed to price
// are regrouped onto their next untried source in a further round. After the
// last round, stale cache entries fill what is still missing.
//
// preferred optionally maps an identifier to the source that should be tried
// first for it. Invalid identifiers are skipped. The only error is ctx's, in
// which case the quotes gathered so far are returned alongside it.
func (r *Resolver) ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error) {
	results := make(map[string]*domain.Quote, len(identifiers))
	if err := ctx.Err(); err != nil {
		return results, err
	}

	prefs := make(map[string]string, len(preferred))
	for id, src := range preferred {
		prefs[domain.NormalizeIdentifier(id)] = src
	}

	pending := make([]string, 0, len(identifiers))
	seen := make(map[string]bool, len(identifiers))
	for _, raw := range identifiers {
		id := domain.NormalizeIdentifier(raw)
		if seen[id] {
			continue
		}
		seen[id] = true

		if domain.Classify(id) == domain.KindUnknown {
			r.log.Warn().Str("identifier", raw).Msg("Skipping invalid identifier in batch")
			continue
		}

		var cached domain.Quote
		if r.rc.Cache.Get(quoteKey(id), r.opts.QuoteMaxAge, &cached) {
			results[id] = &cached
			continue
		}
		pending = append(pending, id)
	}

	tried := make(map[string]map[string]bool, len(pending))
	for _, id := range pending {
		tried[id] = make(map[string]bool)
	}

	var mu sync.Mutex

	for round := 1; len(pending) > 0; round++ {
		groups, order := r.groupBySource(pending, prefs, tried)
		if len(groups) == 0 {
			break
		}

		var g errgroup.Group
		for _, name := range order {
			src, ids := groups[name].src, groups[name].ids
			for _, id := range ids {
				tried[id][name] = true
			}

			// only the prefix that fits the remaining budget is fetched now,
			// the rest is already marked tried and regroups next round
			n := affordable(src, ids, r.rc.Limiter.Remaining(name))
			if n == 0 || !r.rc.Limiter.AllowN(name, requestCost(src, ids[:n])) {
				r.log.Debug().
					Err(domain.ErrRateLimited).
					Str("source", name).
					Int("identifiers", len(ids)).
					Int("round", round).
					Msg("Rate limited, regrouping batch")
				continue
			}
			if n < len(ids) {
				r.log.Debug().
					Str("source", name).
					Int("fetching", n).
					Int("regrouping", len(ids)-n).
					Int("round", round).
					Msg("Rate limit budget short, splitting batch")
				ids = ids[:n]
			}

			g.Go(func() error {
				quotes := r.fetchBatch(ctx, src, ids)

				mu.Lock()
				defer mu.Unlock()
				for _, id := range ids {
					if q := quotes[id]; q.Valid() {
						r.store(id, name, q)
						results[id] = q
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}

		next := pending[:0]
		for _, id := range pending {
			if _, ok := results[id]; !ok {
				next = append(next, id)
			}
		}
		pending = next
	}

	for _, id := range pending {
		var stale domain.Quote
		if r.rc.Cache.GetStale(quoteKey(id), &stale) {
			results[id] = &stale
		}
	}

	return results, nil
}

// affordable returns the length of the longest prefix of ids that src can
// fetch within budget upstream requests.
func affordable(src domain.QuoteSource, ids []string, budget int) int {
	if requestCost(src, ids) <= budget {
		return len(ids)
	}
	return sort.Search(len(ids), func(k int) bool {
		return requestCost(src, ids[:k+1]) > budget
	})
}

type sourceGroup struct {
	src domain.QuoteSource
	ids []string
}

// groupBySource assigns each pending identifier to its first untried eligible
// source. order lists the group names in first-seen order.
func (r *Resolver) groupBySource(pending []string, prefs map[string]string, tried map[string]map[string]bool) (map[string]*sourceGroup, []string) {
	groups := make(map[string]*sourceGroup)
	var order []string

	for _, id := range pending {
		for _, src := range r.eligible(id, prefs[id]) {
			name := src.Name()
			if tried[id][name] {
				continue
			}
			grp, ok := groups[name]
			if !ok {
				grp = &sourceGroup{src: src}
				groups[name] = grp
				order = append(order, name)
			}
			grp.ids = append(grp.ids, id)
			break
		}
	}
	return groups, order
}

// fetchBatch calls one source for a group under the upstream timeout.
// Failures are logged and reported as an empty result.
func (r *Resolver) fetchBatch(ctx context.Context, src domain.QuoteSource, ids []string) map[string]*domain.Quote {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.UpstreamTimeout)
	defer cancel()

	quotes, err := src.FetchBatch(callCtx, ids)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn().
				Err(err).
				Str("source", src.Name()).
				Int("identifiers", len(ids)).
				Msg("Batch fetch failed, regrouping")
		}
		return nil
	}
	return quotes
}
