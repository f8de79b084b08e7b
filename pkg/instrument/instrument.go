package instrument

import "strings"

// Class identifies the broker contract family an order is routed to.
type Class string

const (
	ClassForex  Class = "FOREX"
	ClassEquity Class = "EQUITY"
)

// Instrument is a normalized tradable symbol plus its contract class.
type Instrument struct {
	Symbol string `json:"symbol"`
	Class  Class  `json:"class"`
}

// separators accepted in inbound symbols, e.g. "EUR/USD", "EUR-USD", "EUR:USD".
const separators = "/-: "

// Normalize strips separators and uppercases the symbol. "eur/usd" -> "EURUSD".
func Normalize(symbol string) string {
	var b strings.Builder
	b.Grow(len(symbol))
	for _, r := range symbol {
		if strings.ContainsRune(separators, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Parse classifies a raw symbol and returns its normalized form. A separator
// in the raw symbol marks a currency pair; a bare ticker is an equity.
func Parse(symbol string) Instrument {
	class := ClassEquity
	if strings.ContainsAny(symbol, separators) {
		class = ClassForex
	}
	return Instrument{Symbol: Normalize(symbol), Class: class}
}
