// Package resolver implements the waterfall quote resolution strategy.
//
// Sources are tried one after another in their configured priority order.
// The first source that returns a positive price wins, results are cached,
// and when every source fails the last known (stale) value is served.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// Defaults applied to zero Options fields.
const (
	DefaultQuoteMaxAge      = 60 * time.Second
	DefaultSearchMaxAge     = 5 * time.Minute
	DefaultSearchPriceLimit = 10
	DefaultUpstreamTimeout  = 10 * time.Second
)

// Context is the process-wide resolution state: the quote cache and the
// per-source rate-limit table. Create one per process and share it.
type Context struct {
	Cache   *cache.Store
	Limiter *cache.RateLimiter
}

// NewContext bundles a cache and a limiter.
func NewContext(store *cache.Store, limiter *cache.RateLimiter) *Context {
	return &Context{Cache: store, Limiter: limiter}
}

// Options tunes freshness and fan-out limits.
type Options struct {
	QuoteMaxAge      time.Duration
	SearchMaxAge     time.Duration
	SearchPriceLimit int
	UpstreamTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.QuoteMaxAge <= 0 {
		o.QuoteMaxAge = DefaultQuoteMaxAge
	}
	if o.SearchMaxAge <= 0 {
		o.SearchMaxAge = DefaultSearchMaxAge
	}
	if o.SearchPriceLimit <= 0 {
		o.SearchPriceLimit = DefaultSearchPriceLimit
	}
	if o.UpstreamTimeout <= 0 {
		o.UpstreamTimeout = DefaultUpstreamTimeout
	}
	return o
}

// Resolver resolves quotes and searches across a fixed, ordered set of sources.
type Resolver struct {
	rc        *Context
	sources   []domain.QuoteSource
	searchers []namedSearcher
	opts      Options
	log       zerolog.Logger
}

type namedSearcher struct {
	name string
	domain.Searcher
}

// New creates a Resolver. The order of sources is their priority; sources
// that also implement domain.Searcher take part in searches in the same order.
func New(rc *Context, sources []domain.QuoteSource, opts Options, log zerolog.Logger) *Resolver {
	r := &Resolver{
		rc:      rc,
		sources: append([]domain.QuoteSource(nil), sources...),
		opts:    opts.withDefaults(),
		log:     log.With().Str("service", "resolver").Logger(),
	}
	for _, src := range r.sources {
		if s, ok := src.(domain.Searcher); ok {
			r.searchers = append(r.searchers, namedSearcher{name: src.Name(), Searcher: s})
		}
	}
	return r
}

// SourceNames returns the configured sources in priority order.
func (r *Resolver) SourceNames() []string {
	names := make([]string, len(r.sources))
	for i, src := range r.sources {
		names[i] = src.Name()
	}
	return names
}

// Context returns the shared cache and limiter.
func (r *Resolver) Context() *Context {
	return r.rc
}

func quoteKey(id string) string {
	return "quote:" + id
}

// ResolveQuote returns the best available quote for identifier.
//
// A nil quote with a nil error means no source could price the identifier
// and nothing was cached. An error is returned only for an invalid
// identifier or when ctx is done; source failures never surface.
func (r *Resolver) ResolveQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	id := domain.NormalizeIdentifier(identifier)
	if domain.Classify(id) == domain.KindUnknown {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, identifier)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := quoteKey(id)

	var cached domain.Quote
	if r.rc.Cache.Get(key, r.opts.QuoteMaxAge, &cached) {
		return &cached, nil
	}

	for _, src := range r.eligible(id, "") {
		if !r.rc.Limiter.AllowN(src.Name(), requestCost(src, []string{id})) {
			r.log.Debug().
				Str("source", src.Name()).
				Str("identifier", id).
				Msg("Rate limited, skipping source")
			continue
		}

		q, err := r.fetchQuote(ctx, src, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.log.Warn().
				Err(err).
				Str("source", src.Name()).
				Str("identifier", id).
				Msg("Source failed, trying next")
			continue
		}
		if !q.Valid() {
			r.log.Debug().
				Str("source", src.Name()).
				Str("identifier", id).
				Msg("Source returned no usable price, trying next")
			continue
		}

		r.store(id, src.Name(), q)
		return q, nil
	}

	if r.rc.Cache.GetStale(key, &cached) {
		return &cached, nil
	}

	r.log.Info().Str("identifier", id).Msg("No quote available from any source")
	return nil, nil
}

// fetchQuote calls one source under the upstream timeout.
func (r *Resolver) fetchQuote(ctx context.Context, src domain.QuoteSource, id string) (*domain.Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.UpstreamTimeout)
	defer cancel()
	return src.FetchQuote(callCtx, id)
}

// store tags a fresh quote and writes it through to the cache.
func (r *Resolver) store(id, source string, q *domain.Quote) {
	q.Identifier = id
	if q.Source == "" {
		q.Source = source
	}
	if q.CapturedAt.IsZero() {
		q.CapturedAt = time.Now()
	}
	if err := r.rc.Cache.Set(quoteKey(id), q, source); err != nil {
		r.log.Warn().Err(err).Str("identifier", id).Msg("Failed to cache quote")
	}
}

// eligible returns the sources supporting id in priority order, with the
// preferred source (if eligible) moved to the front.
func (r *Resolver) eligible(id, preferred string) []domain.QuoteSource {
	out := make([]domain.QuoteSource, 0, len(r.sources))
	for _, src := range r.sources {
		if !src.Supports(id) {
			continue
		}
		if preferred != "" && src.Name() == preferred {
			out = append([]domain.QuoteSource{src}, out...)
			continue
		}
		out = append(out, src)
	}
	return out
}

// requestCost is the number of upstream requests src needs to fetch ids.
func requestCost(src domain.QuoteSource, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	if rc, ok := src.(domain.RequestCounter); ok {
		return rc.Requests(ids)
	}
	return 1
}
