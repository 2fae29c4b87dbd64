package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/folio/internal/domain"
)

// ErrNoQuote is returned when no source could price an identifier.
var ErrNoQuote = errors.New("no quote available")

func addQuoteCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <identifier>",
		Short: "Get the current price of one instrument",
		Long: `Resolve the best available quote for an identifier.

Sources are tried in priority order; the first usable price wins. When every
source fails, the last cached quote is shown if there is one.`,
		Example: `  folio quote US0378331005
  folio quote SAP.DE
  folio quote BTC-EUR --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			app.Logger.Debug().Str("identifier", args[0]).Msg("Resolving quote")
			quote, err := app.Resolver.ResolveQuote(ctx, args[0])
			if err != nil {
				return err
			}
			if quote == nil {
				return fmt.Errorf("%w for %s", ErrNoQuote, domain.NormalizeIdentifier(args[0]))
			}

			if output.IsJSON() {
				return output.JSON(quote)
			}
			displayQuote(output, quote)
			return nil
		},
	}
}

func displayQuote(output *Output, q *domain.Quote) {
	title := q.Identifier
	if q.Name != "" {
		title += "  " + q.Name
	}
	output.Bold("%s", title)

	table := NewTable(output, "FIELD", "VALUE")
	table.AddRow("Price", domain.FormatMoney(q.Price, q.Currency))
	if q.Symbol != "" && q.Symbol != q.Identifier {
		table.AddRow("Symbol", q.Symbol)
	}
	if q.Bid != nil {
		table.AddRow("Bid", domain.FormatMoney(*q.Bid, q.Currency))
	}
	if q.Ask != nil {
		table.AddRow("Ask", domain.FormatMoney(*q.Ask, q.Currency))
	}
	if q.PreviousClose != nil {
		table.AddRow("Previous close", domain.FormatMoney(*q.PreviousClose, q.Currency))
	}
	table.AddRow("Source", q.Source)
	if q.TradedAt != nil {
		table.AddRow("Last trade", q.TradedAt.Local().Format(time.RFC3339))
	}
	table.AddRow("Captured", q.CapturedAt.Local().Format(time.RFC3339))
	table.Render()
}

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <identifier>...",
		Short: "Price several instruments at once",
		Long: `Resolve quotes for several identifiers with as few upstream calls as possible.

Identifiers are grouped per source and each group is fetched in one request.`,
		Example: `  folio batch AAPL MSFT SAP.DE
  folio batch US0378331005 BTC --prefer US0378331005=ing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			preferred, _ := cmd.Flags().GetStringToString("prefer")

			app.Logger.Debug().Int("identifiers", len(args)).Msg("Resolving batch")
			quotes, err := app.Resolver.ResolveBatch(ctx, args, preferred)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(quotes)
			}
			displayBatch(output, args, quotes)
			return nil
		},
	}

	cmd.Flags().StringToString("prefer", nil, "preferred source per identifier (ID=source)")

	return cmd
}

func displayBatch(output *Output, requested []string, quotes map[string]*domain.Quote) {
	ids := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, raw := range requested {
		id := domain.NormalizeIdentifier(raw)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	table := NewTable(output, "IDENTIFIER", "PRICE", "SOURCE", "CAPTURED")
	missing := 0
	for _, id := range ids {
		q, ok := quotes[id]
		if !ok {
			missing++
			table.AddRow(id, "-", "-", "-")
			continue
		}
		table.AddRow(id, domain.FormatMoney(q.Price, q.Currency), q.Source, q.CapturedAt.Local().Format("2006-01-02 15:04"))
	}
	table.Render()

	if missing > 0 {
		output.Warning("%d of %d identifiers could not be priced", missing, len(ids))
	}
}

func newSearchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search instruments by name, ticker or ISIN",
		Example: `  folio search apple
  folio search "msci world" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			limit, _ := cmd.Flags().GetInt("limit")

			results, err := app.Resolver.ResolveSearch(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if output.IsJSON() {
				if results == nil {
					results = []domain.SearchResult{}
				}
				return output.JSON(results)
			}
			if len(results) == 0 {
				output.Warning("No instruments found")
				return nil
			}
			displaySearch(output, results)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "maximum number of results (0 = all)")

	return cmd
}

func displaySearch(output *Output, results []domain.SearchResult) {
	table := NewTable(output, "IDENTIFIER", "NAME", "EXCHANGE", "TYPE", "PRICE", "SOURCE", "SCORE")
	for _, r := range results {
		price := "-"
		if r.HasPrice() {
			price = domain.FormatMoney(*r.Price, r.Currency)
		}
		table.AddRow(r.Identifier, r.Name, r.Exchange, r.Type, price, r.Source, strconv.Itoa(r.Relevance))
	}
	table.Render()
}
