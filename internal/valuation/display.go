package valuation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// NotSet is rendered for prices that were never recorded.
const NotSet = "—"

var currencySymbols = map[domain.Currency]string{
	domain.ARS: "$",
	domain.USD: "US$",
}

// Pair is a price rendered in its stored currency (Primary) and in the other currency (Secondary).
type Pair struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// DisplayPair renders m in its own currency and in the other one. The secondary figure uses m's own
// rate and falls back to currentRate only when m has none.
func DisplayPair(m *domain.Money, currentRate decimal.Decimal) Pair {
	if !m.IsSet() {
		return Pair{Primary: NotSet, Secondary: NotSet}
	}

	rate := currentRate
	if m.Convertible() {
		rate = m.ExchangeRate
	}

	p := Pair{Primary: Format(m.Amount, m.Currency), Secondary: NotSet}
	other, err := domain.ConvertAtRate(*m, m.Currency.Other(), rate)
	if err == nil {
		p.Secondary = Format(other.Amount, other.Currency)
	}
	return p
}

// Format renders an amount with Argentine grouping and no decimals, e.g. "US$ 12.500" or
// "$ 1.234.567".
func Format(amount decimal.Decimal, currency domain.Currency) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	return sign + currencySymbols[currency] + " " + groupThousands(amount.Round(0).StringFixed(0))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
