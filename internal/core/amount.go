// Package core holds the domain model shared by the ledger clients, the
// expense store and the submission pipeline.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount coerces a raw sheet cell into a decimal amount. The remote
// feed delivers amounts either as native numbers or as currency-formatted
// text ("¥1,200", "NT$350.50"); for text, every rune that is not a digit,
// minus sign or decimal point is stripped before parsing. Returns false when
// nothing numeric remains.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		return parseAmountString(x.String())
	case string:
		return parseAmountString(x)
	default:
		return parseAmountString(fmt.Sprint(v))
	}
}

func parseAmountString(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
