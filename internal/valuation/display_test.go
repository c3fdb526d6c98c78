package valuation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		amount   string
		currency domain.Currency
		want     string
	}{
		{"0.4", domain.USD, "US$ 0"},
		{"999", domain.ARS, "$ 999"},
		{"1000", domain.ARS, "$ 1.000"},
		{"12500", domain.USD, "US$ 12.500"},
		{"1234567.89", domain.ARS, "$ 1.234.568"},
		{"-2500", domain.USD, "-US$ 2.500"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Format(dec(tt.amount), tt.currency)
			if got != tt.want {
				t.Errorf("Format(%s, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
			}
		})
	}
}

func TestDisplayPair(t *testing.T) {
	current := dec("1300")

	tests := []struct {
		name  string
		money *domain.Money
		want  Pair
	}{
		{"not set", nil, Pair{NotSet, NotSet}},
		{"zero amount", money("0", domain.USD, "1000", d1), Pair{NotSet, NotSet}},
		{"own rate", money("10000", domain.USD, "1000", d1), Pair{"US$ 10.000", "$ 10.000.000"}},
		{"falls back to current rate", money("13000000", domain.ARS, "", d1), Pair{"$ 13.000.000", "US$ 10.000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DisplayPair(tt.money, current)
			if got != tt.want {
				t.Errorf("DisplayPair() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDisplayPairNoRateAnywhere(t *testing.T) {
	got := DisplayPair(money("500", domain.USD, "", d1), decimal.Zero)
	if got.Primary != "US$ 500" || got.Secondary != NotSet {
		t.Errorf("DisplayPair() = %+v, want primary only", got)
	}
}

func TestDisplayPairFieldsIndependent(t *testing.T) {
	ref := money("10000", domain.USD, "1000", d1)
	target := money("10000", domain.USD, "1200", d2)

	refPair := DisplayPair(ref, dec("1500"))
	targetPair := DisplayPair(target, dec("1500"))

	if refPair.Secondary != "$ 10.000.000" {
		t.Errorf("reference secondary = %q", refPair.Secondary)
	}
	if targetPair.Secondary != "$ 12.000.000" {
		t.Errorf("target secondary = %q", targetPair.Secondary)
	}
}
