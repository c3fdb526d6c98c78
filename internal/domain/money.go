package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is one of the two currencies the dealership prices in.
type Currency string

const (
	ARS Currency = "ARS"
	USD Currency = "USD"
)

// Other returns the opposite currency of the ARS/USD pair.
func (c Currency) Other() Currency {
	if c == USD {
		return ARS
	}
	return USD
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == ARS || c == USD
}

// ParseCurrency parses a currency code case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Money is a monetary fact tied to the exchange rate (ARS per USD) and the date under which it was
// established. A zero ExchangeRate means the rate is unknown and the value cannot be converted.
type Money struct {
	Amount       decimal.Decimal
	Currency     Currency
	ExchangeRate decimal.Decimal
	AsOf         time.Time
}

// NewMoney builds a Money with its date truncated to the calendar day.
func NewMoney(amount decimal.Decimal, currency Currency, rate decimal.Decimal, asOf time.Time) Money {
	return Money{Amount: amount, Currency: currency, ExchangeRate: rate, AsOf: Day(asOf)}
}

// IsSet reports whether m carries a non-zero amount. Zero is rendered as "not set".
func (m *Money) IsSet() bool {
	return m != nil && !m.Amount.IsZero()
}

// Convertible reports whether m has a usable exchange rate.
func (m Money) Convertible() bool {
	return m.ExchangeRate.IsPositive()
}

// WithRate returns a copy of m tagged with rate and asOf.
func (m Money) WithRate(rate decimal.Decimal, asOf time.Time) Money {
	return NewMoney(m.Amount, m.Currency, rate, asOf)
}

// Convert expresses m in target using the rate stored on m itself. The result keeps m's rate and date.
func Convert(m Money, target Currency) (Money, error) {
	if m.Currency == target {
		return m, nil
	}
	if !m.Convertible() {
		return Money{}, fmt.Errorf("converting %s to %s: %w", m.Currency, target, ErrUnconvertibleValue)
	}
	return convert(m, target, m.ExchangeRate), nil
}

// ConvertAtRate expresses m in target using a caller-supplied rate, i.e. "what is this worth at rate"
// rather than "what was it worth when recorded". The result is tagged with rate.
func ConvertAtRate(m Money, target Currency, rate decimal.Decimal) (Money, error) {
	if m.Currency == target {
		return m, nil
	}
	if !rate.IsPositive() {
		return Money{}, fmt.Errorf("converting %s to %s at rate %s: %w", m.Currency, target, rate, ErrUnconvertibleValue)
	}
	return convert(m, target, rate), nil
}

func convert(m Money, target Currency, rate decimal.Decimal) Money {
	amount := m.Amount.Mul(rate)
	if target == USD {
		amount = m.Amount.Div(rate)
	}
	return Money{Amount: amount, Currency: target, ExchangeRate: rate, AsOf: m.AsOf}
}

type moneyJSON struct {
	Amount       decimal.Decimal  `json:"amount"`
	Currency     Currency         `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchangeRate,omitempty"`
	AsOf         string           `json:"asOf,omitempty"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	out := moneyJSON{Amount: m.Amount, Currency: m.Currency}
	if m.Convertible() {
		out.ExchangeRate = &m.ExchangeRate
	}
	if !m.AsOf.IsZero() {
		out.AsOf = m.AsOf.Format(DateLayout)
	}
	return json.Marshal(out)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var in moneyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	currency, err := ParseCurrency(string(in.Currency))
	if err != nil {
		return err
	}
	out := Money{Amount: in.Amount, Currency: currency}
	if in.ExchangeRate != nil {
		out.ExchangeRate = *in.ExchangeRate
	}
	if in.AsOf != "" {
		d, err := time.Parse(DateLayout, in.AsOf)
		if err != nil {
			return fmt.Errorf("parsing asOf: %w", err)
		}
		out.AsOf = d
	}
	*m = out
	return nil
}

// Day returns t normalized to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
