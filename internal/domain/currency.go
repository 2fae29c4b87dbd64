package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the last-resort currency when nothing else can be inferred.
const DefaultCurrency = "USD"

// suffixCurrencies maps exchange suffixes (Yahoo style) to trading currencies.
var suffixCurrencies = map[string]string{
	// Germany
	"DE": "EUR", "F": "EUR", "BE": "EUR", "DU": "EUR", "HM": "EUR", "HA": "EUR", "MU": "EUR", "SG": "EUR",
	// Rest of the euro area
	"PA": "EUR", "AS": "EUR", "BR": "EUR", "MI": "EUR", "MC": "EUR", "LS": "EUR",
	"VI": "EUR", "HE": "EUR", "IR": "EUR", "AT": "EUR",
	// Other European venues
	"L": "GBP", "IL": "GBP", "SW": "CHF", "VX": "CHF", "ST": "SEK", "CO": "DKK", "OL": "NOK", "WA": "PLN",
	// Americas
	"TO": "CAD", "V": "CAD", "NE": "CAD", "SA": "BRL", "MX": "MXN",
	// Asia-Pacific
	"T": "JPY", "HK": "HKD", "AX": "AUD", "NS": "INR", "BO": "INR", "SI": "SGD", "KS": "KRW", "SS": "CNY", "SZ": "CNY",
}

// isinCountryCurrencies maps ISIN country prefixes to the usual listing currency.
var isinCountryCurrencies = map[string]string{
	"DE": "EUR", "AT": "EUR", "FR": "EUR", "NL": "EUR", "BE": "EUR", "IE": "EUR", "LU": "EUR",
	"IT": "EUR", "ES": "EUR", "FI": "EUR", "PT": "EUR", "GR": "EUR",
	"GB": "GBP", "CH": "CHF", "SE": "SEK", "DK": "DKK", "NO": "NOK",
	"US": "USD", "CA": "CAD", "JP": "JPY", "HK": "HKD", "AU": "AUD",
}

// NormalizeCurrency upper-cases a currency code and checks it is a known ISO code.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", false
	}
	if money.GetCurrency(code) == nil {
		return "", false
	}
	return code, true
}

// NormalizePence converts prices quoted in pence sterling (GBp / GBX) to GBP.
// Other currencies pass through unchanged.
func NormalizePence(price decimal.Decimal, currency string) (decimal.Decimal, string) {
	trimmed := strings.TrimSpace(currency)
	if trimmed == "GBp" || strings.EqualFold(trimmed, "GBX") {
		return price.Div(decimal.NewFromInt(100)), "GBP"
	}
	return price, currency
}

// InferCurrency picks the currency for an identifier.
// Fallback order: explicit upstream currency, ticker exchange suffix, crypto
// pair quote, ISIN country prefix, DefaultCurrency.
func InferCurrency(identifier, explicit string) string {
	if code, ok := NormalizeCurrency(explicit); ok {
		return code
	}

	id := NormalizeIdentifier(identifier)

	if strings.HasSuffix(id, "=X") && len(id) == 8 {
		// EURUSD=X is quoted in the second currency of the pair
		if code, ok := NormalizeCurrency(id[3:6]); ok {
			return code
		}
	}

	if _, quote, ok := CryptoBase(id); ok && quote != "" {
		return quote
	}

	if suffix := ExchangeSuffix(id); suffix != "" {
		if code, ok := suffixCurrencies[suffix]; ok {
			return code
		}
	}

	if country := ISINCountry(id); country != "" {
		if code, ok := isinCountryCurrencies[country]; ok {
			return code
		}
	}

	return DefaultCurrency
}

// BestAvailablePrice extracts a price from a feed with differentiated bid/ask.
// Order: last trade, bid/ask midpoint, bid alone, ask alone.
func BestAvailablePrice(last, bid, ask *decimal.Decimal) (decimal.Decimal, bool) {
	positive := func(d *decimal.Decimal) bool { return d != nil && d.IsPositive() }

	switch {
	case positive(last):
		return *last, true
	case positive(bid) && positive(ask):
		return bid.Add(*ask).Div(decimal.NewFromInt(2)), true
	case positive(bid):
		return *bid, true
	case positive(ask):
		return *ask, true
	default:
		return decimal.Zero, false
	}
}

// FormatMoney renders an amount with the currency's symbol and fraction digits.
// Unknown currencies fall back to "<amount> <code>".
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
