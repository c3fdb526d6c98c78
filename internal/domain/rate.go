package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateType distinguishes the market an exchange rate was quoted on.
type RateType string

const (
	RateTypeDaily    RateType = "daily"    // parallel ("blue") market sell rate
	RateTypeOfficial RateType = "official" // official market sell rate
)

// ExchangeRateRecord is the stored USD rate (ARS per USD) for one date and rate type.
type ExchangeRateRecord struct {
	Date      time.Time       `json:"date"`
	RateType  RateType        `json:"rateType"`
	USDRate   decimal.Decimal `json:"usdRate"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CurrentRate is the answer to "what is the USD rate right now". Degraded is set when the external
// source failed and the value comes from the most recent stored record.
type CurrentRate struct {
	Rate     decimal.Decimal `json:"rate"`
	AsOf     time.Time       `json:"asOf"`
	Degraded bool            `json:"degraded"`
}
