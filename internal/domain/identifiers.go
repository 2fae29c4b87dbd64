package domain

import (
	"regexp"
	"strings"
)

// IdentifierKind classifies the shape of an instrument identifier.
type IdentifierKind string

const (
	KindISIN    IdentifierKind = "ISIN"
	KindCrypto  IdentifierKind = "CRYPTO"
	KindTicker  IdentifierKind = "TICKER"
	KindUnknown IdentifierKind = "UNKNOWN"
)

// ISIN validation pattern (12 characters: 2 letters, 9 alphanumeric, 1 digit)
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// Ticker pattern covers plain tickers, exchange suffixes (SAP.DE), share
// classes (BRK-B), indices (^GDAXI) and FX pairs (EURUSD=X).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=^]{0,19}$`)

// CoinIDs maps crypto symbols to their Coingecko coin ids.
var CoinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOT":   "polkadot",
	"DOGE":  "dogecoin",
	"LTC":   "litecoin",
	"BNB":   "binancecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"XLM":   "stellar",
	"ATOM":  "cosmos",
	"TRX":   "tron",
}

// NormalizeIdentifier trims and upper-cases an identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

// IsISIN checks the ISIN shape and its Luhn check digit.
func IsISIN(identifier string) bool {
	identifier = NormalizeIdentifier(identifier)
	if len(identifier) != 12 || !isinPattern.MatchString(identifier) {
		return false
	}
	return isinChecksumValid(identifier)
}

// isinChecksumValid expands letters to two-digit numbers (A=10 .. Z=35) and
// runs Luhn over the resulting digit string.
func isinChecksumValid(isin string) bool {
	var digits strings.Builder
	for _, r := range isin {
		if r >= 'A' && r <= 'Z' {
			n := int(r-'A') + 10
			digits.WriteByte(byte('0' + n/10))
			digits.WriteByte(byte('0' + n%10))
			continue
		}
		digits.WriteRune(r)
	}

	s := digits.String()
	sum := 0
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if (len(s)-1-i)%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// ISINCountry returns the two-letter country prefix of an ISIN, or "".
func ISINCountry(identifier string) string {
	if !IsISIN(identifier) {
		return ""
	}
	return NormalizeIdentifier(identifier)[:2]
}

// IsTicker reports whether the identifier is ticker-shaped and not an ISIN.
func IsTicker(identifier string) bool {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" || IsISIN(identifier) {
		return false
	}
	return tickerPattern.MatchString(identifier)
}

// CryptoBase returns the coin symbol and optional fiat quote currency for a
// crypto identifier ("BTC" or "BTC-EUR"). ok is false for anything else.
func CryptoBase(identifier string) (base, quote string, ok bool) {
	identifier = NormalizeIdentifier(identifier)
	base, quote, _ = strings.Cut(identifier, "-")
	if _, known := CoinIDs[base]; !known {
		return "", "", false
	}
	if quote != "" {
		if _, valid := NormalizeCurrency(quote); !valid {
			return "", "", false
		}
	}
	return base, quote, true
}

// IsCrypto reports whether the identifier names a recognized crypto asset.
func IsCrypto(identifier string) bool {
	_, _, ok := CryptoBase(identifier)
	return ok
}

// Classify returns the kind of identifier. ISIN wins over crypto, crypto over ticker.
func Classify(identifier string) IdentifierKind {
	switch {
	case IsISIN(identifier):
		return KindISIN
	case IsCrypto(identifier):
		return KindCrypto
	case IsTicker(identifier):
		return KindTicker
	default:
		return KindUnknown
	}
}

// ExchangeSuffix returns the part after the last dot of a ticker ("DE" for SAP.DE).
func ExchangeSuffix(ticker string) string {
	ticker = NormalizeIdentifier(ticker)
	idx := strings.LastIndex(ticker, ".")
	if idx < 0 || idx == len(ticker)-1 {
		return ""
	}
	return ticker[idx+1:]
}

var derivativeKeywords = []string{
	"turbo",
	"knock-out",
	"knockout",
	"optionsschein",
	"warrant",
	"mini future",
	"mini-future",
	"faktor",
	"factor certificate",
	"zertifikat",
	"certificate",
	"leverage",
	"hebel",
}

// IsDerivativeName guesses from the product name whether an instrument is a
// leveraged product or derivative rather than the underlying.
func IsDerivativeName(name string) bool {
	name = strings.ToLower(name)
	for _, kw := range derivativeKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
