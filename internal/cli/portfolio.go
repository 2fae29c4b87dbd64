package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/portfolio"
	"github.com/aristath/folio/internal/utils"
)

// LedgerFile is the on-disk input of the positions command. A bare JSON
// array of trades is accepted as well.
type LedgerFile struct {
	Trades []domain.Trade                   `json:"trades"`
	Meta   map[string]domain.InstrumentMeta `json:"meta,omitempty"`
}

func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPositionsCmd(app))
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions <trades.json>",
		Short: "Value a trade ledger at current prices",
		Long: `Build positions from a ledger of trades using average cost, price the open
ones and print per-position and total P&L.

The file holds {"trades": [...], "meta": {...}} or just an array of trades.
Filters only affect the totals; every position is listed.`,
		Example: `  folio positions ledger.json
  folio positions ledger.json --mtd
  folio positions ledger.json --from 2024-01-01 --group tech --open-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ledger, err := LoadLedger(args[0])
			if err != nil {
				return err
			}

			opts, err := totalsOptionsFromFlags(cmd)
			if err != nil {
				return err
			}

			app.Logger.Debug().Int("trades", len(ledger.Trades)).Str("file", args[0]).Msg("Ledger loaded")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var val *portfolio.Valuation
			if mtd, _ := cmd.Flags().GetBool("mtd"); mtd {
				val, err = app.Portfolio.MonthToDate(ctx, ledger.Trades, ledger.Meta, opts)
			} else {
				val, err = app.Portfolio.Value(ctx, ledger.Trades, ledger.Meta, opts)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(val)
			}
			displayValuation(output, val)
			return nil
		},
	}

	cmd.Flags().String("from", "", "only count positions traded on or after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().String("to", "", "only count positions traded on or before this date")
	cmd.Flags().StringSlice("group", nil, "only count positions in these groups")
	cmd.Flags().Bool("open-only", false, "only count open positions")
	cmd.Flags().Bool("closed-only", false, "only count closed positions")
	cmd.Flags().Bool("mtd", false, "month-to-date totals (overrides --from/--to)")

	return cmd
}

// LoadLedger reads a ledger file.
func LoadLedger(path string) (*LedgerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	ledger := &LedgerFile{}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &ledger.Trades)
	} else {
		err = json.Unmarshal(data, ledger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	return ledger, nil
}

func totalsOptionsFromFlags(cmd *cobra.Command) (domain.TotalsOptions, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	groups, _ := cmd.Flags().GetStringSlice("group")
	openOnly, _ := cmd.Flags().GetBool("open-only")
	closedOnly, _ := cmd.Flags().GetBool("closed-only")

	opts := domain.TotalsOptions{Groups: groups, OpenOnly: openOnly, ClosedOnly: closedOnly}

	var err error
	if opts.From, err = utils.ParseDateBound(from, false); err != nil {
		return opts, fmt.Errorf("invalid --from: %w", err)
	}
	if opts.To, err = utils.ParseDateBound(to, true); err != nil {
		return opts, fmt.Errorf("invalid --to: %w", err)
	}
	return opts, nil
}

func displayValuation(output *Output, val *portfolio.Valuation) {
	table := NewTable(output, "INSTRUMENT", "QTY", "AVG COST", "PRICE", "VALUE", "UNREALIZED", "REALIZED", "TOTAL %", "SOURCE")
	for _, p := range val.Positions {
		cur := p.Currency
		price, source := "-", "-"
		if p.Priced {
			price = domain.FormatMoney(p.CurrentPrice, cur)
			source = p.PriceSource
		}
		name := p.InstrumentID
		if p.IsClosed {
			name += " (closed)"
		}
		table.AddRow(
			name,
			p.Quantity.String(),
			domain.FormatMoney(p.AvgCost, cur),
			price,
			domain.FormatMoney(p.CurrentValue, cur),
			output.PnL(p.UnrealizedPnL, domain.FormatMoney(p.UnrealizedPnL, cur)),
			output.PnL(p.RealizedPnL, domain.FormatMoney(p.RealizedPnL, cur)),
			output.Percent(p.TotalPnLPercent),
			source,
		)
	}
	table.Render()

	t := val.Totals
	output.Println()
	output.Bold("Totals (%d positions, %d open, %d closed)", t.PositionCount, t.OpenPositions, t.ClosedPositions)
	output.Printf("  Cost         %s\n", t.TotalCost.StringFixed(2))
	output.Printf("  Value        %s\n", t.CurrentValue.StringFixed(2))
	output.Printf("  Unrealized   %s\n", output.PnL(t.UnrealizedPnL, t.UnrealizedPnL.StringFixed(2)))
	output.Printf("  Realized     %s\n", output.PnL(t.RealizedPnL, t.RealizedPnL.StringFixed(2)))
	output.Printf("  Fees         %s\n", t.TotalFees.StringFixed(2))
	output.Printf("  Total P&L    %s (%s)\n", output.PnL(t.TotalPnL, t.TotalPnL.StringFixed(2)), output.Percent(t.TotalPnLPercent))
	output.Printf("  Winners %d, losers %d\n", t.WinningPositions, t.LosingPositions)

	if len(val.Unpriced) > 0 {
		output.Warning("No price for %v, carried at cost", val.Unpriced)
	}
}
