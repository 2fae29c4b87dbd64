// Package cli provides the command-line interface for Folio.
package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/portfolio"
)

// Version information
const Version = "0.1.0"

// defaultTimeout bounds one command's upstream work.
const defaultTimeout = 30 * time.Second

// QuoteResolver resolves quotes and searches.
type QuoteResolver interface {
	ResolveQuote(ctx context.Context, identifier string) (*domain.Quote, error)
	ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error)
	ResolveSearch(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// PortfolioValuer values a trade ledger.
type PortfolioValuer interface {
	Value(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*portfolio.Valuation, error)
	MonthToDate(ctx context.Context, trades []domain.Trade, meta map[string]domain.InstrumentMeta, opts domain.TotalsOptions) (*portfolio.Valuation, error)
}

// App holds the application dependencies.
type App struct {
	Resolver  QuoteResolver
	Portfolio PortfolioValuer
	Logger    zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "folio",
		Short: "Folio - instrument quotes and portfolio valuation",
		Long: `Folio resolves instrument prices through a waterfall of upstream
sources (ING, Yahoo Finance, Finnhub, Coingecko) and values trade ledgers
against them.

Identifiers may be ISINs, tickers (SAP.DE, AAPL) or crypto symbols (BTC, ETH-EUR).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Duration("timeout", defaultTimeout, "overall timeout for upstream requests")

	addQuoteCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)

	return rootCmd
}

// commandContext returns a context bounded by the --timeout flag.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil || timeout <= 0 {
		timeout = defaultTimeout
	}
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
