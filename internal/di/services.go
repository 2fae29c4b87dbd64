package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/cache"
	"github.com/aristath/folio/internal/clients/coingecko"
	"github.com/aristath/folio/internal/clients/finnhub"
	"github.com/aristath/folio/internal/clients/ing"
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/portfolio"
	"github.com/aristath/folio/internal/resolver"
)

// InitializeServices creates the cache, the quote sources and the services
// built on them. It does not touch storage.
func InitializeServices(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	store, err := cache.New(cache.Options{
		MaxEntries: cfg.CacheMaxEntries,
		TTL:        cfg.CacheTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	limits := make(map[string]cache.Limit, len(cfg.RateLimits))
	for source, l := range cfg.RateLimits {
		limits[source] = cache.Limit{Max: l.Max, Window: l.Window}
	}

	container := &Container{
		Cache:   store,
		Limiter: cache.NewRateLimiter(limits, nil),
		Sources: buildSources(cfg, log),
	}

	container.Resolver = resolver.New(
		resolver.NewContext(container.Cache, container.Limiter),
		container.Sources,
		resolver.Options{
			QuoteMaxAge:      cfg.QuoteMaxAge,
			SearchMaxAge:     cfg.SearchMaxAge,
			SearchPriceLimit: cfg.SearchPriceLimit,
			UpstreamTimeout:  cfg.UpstreamTimeout,
		},
		log,
	)
	container.PortfolioService = portfolio.NewService(container.Resolver, log)

	log.Info().Strs("sources", container.SourceNames()).Msg("Services initialized")
	return container, nil
}

// buildSources creates one client per entry of config.SourceOrder.
func buildSources(cfg *config.Config, log zerolog.Logger) []domain.QuoteSource {
	sources := make([]domain.QuoteSource, 0, len(config.SourceOrder))
	for _, name := range config.SourceOrder {
		switch name {
		case config.SourceING:
			sources = append(sources, ing.NewClient(cfg.INGBaseURL, cfg.UpstreamTimeout, log))
		case config.SourceYahoo:
			sources = append(sources, yahoo.NewClient(cfg.YahooBaseURL, cfg.CoingeckoVsCurrency, cfg.UpstreamTimeout, log))
		case config.SourceFinnhub:
			if cfg.FinnhubAPIKey == "" {
				log.Info().Msg("FINNHUB_API_KEY not set, Finnhub source disabled")
				continue
			}
			sources = append(sources, finnhub.NewClient(cfg.FinnhubAPIKey, cfg.FinnhubBaseURL, cfg.UpstreamTimeout, log))
		case config.SourceCoingecko:
			sources = append(sources, coingecko.NewClient(cfg.CoingeckoBaseURL, cfg.CoingeckoVsCurrency, cfg.UpstreamTimeout, log))
		}
	}
	return sources
}
