package valuation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// Valuation groups the independently dated and rated monetary facts of one vehicle.
type Valuation struct {
	AcquisitionCost *domain.Money
	Expenses        []domain.ExpenseItem
	ReferencePrice  *domain.Money
	TargetPrice     *domain.Money
	PublicPrice     *domain.Money
}

// FromVehicle extracts the valuation fields of a vehicle.
func FromVehicle(v domain.Vehicle) Valuation {
	return Valuation{
		AcquisitionCost: v.AcquisitionCost,
		Expenses:        v.Expenses,
		ReferencePrice:  v.ReferencePrice,
		TargetPrice:     v.TargetPrice,
		PublicPrice:     v.PublicPrice,
	}
}

// CostTotal is the total cost of a vehicle in both currencies. USD is nil when the acquisition carries
// no rate to project the ARS total with.
type CostTotal struct {
	ARS decimal.Decimal  `json:"ars"`
	USD *decimal.Decimal `json:"usd,omitempty"`
}

// TotalCost sums acquisition cost and expenses in ARS, converting each component with its own stored
// rate (an expense without a rate falls back to the acquisition rate). The USD figure divides the ARS
// total by the acquisition rate, which is what the vehicle cost in dollars when it was bought.
func TotalCost(val Valuation) (CostTotal, error) {
	if !val.AcquisitionCost.IsSet() {
		return CostTotal{}, fmt.Errorf("acquisition cost not set: %w", domain.ErrUnconvertibleValue)
	}
	acq := *val.AcquisitionCost

	acqARS, err := domain.Convert(acq, domain.ARS)
	if err != nil {
		return CostTotal{}, fmt.Errorf("acquisition cost: %w", err)
	}

	total := acqARS.Amount
	for i, item := range val.Expenses {
		m := item.Money
		if !m.Convertible() && acq.Convertible() {
			m = m.WithRate(acq.ExchangeRate, m.AsOf)
		}
		ars, err := domain.Convert(m, domain.ARS)
		if err != nil {
			return CostTotal{}, fmt.Errorf("expense %d (%s): %w", i, item.Description, err)
		}
		total = total.Add(ars.Amount)
	}

	result := CostTotal{ARS: total}
	if usd, err := domain.ConvertAtRate(domain.Money{Amount: total, Currency: domain.ARS}, domain.USD, acq.ExchangeRate); err == nil {
		result.USD = &usd.Amount
	}
	return result, nil
}

// ExpensesByCategory totals expenses in ARS per category using each item's own rate. Items that
// cannot be converted are left out and reported in skipped.
func ExpensesByCategory(expenses []domain.ExpenseItem) (totals map[domain.ExpenseCategory]decimal.Decimal, skipped int) {
	totals = make(map[domain.ExpenseCategory]decimal.Decimal)
	for category, items := range lo.GroupBy(expenses, func(e domain.ExpenseItem) domain.ExpenseCategory { return e.Category }) {
		sum := decimal.Zero
		for _, item := range items {
			ars, err := domain.Convert(item.Money, domain.ARS)
			if err != nil {
				skipped++
				continue
			}
			sum = sum.Add(ars.Amount)
		}
		totals[category] = sum
	}
	return totals, skipped
}

// VehicleReport is the reportable valuation of one vehicle.
type VehicleReport struct {
	VehicleID      uuid.UUID                                  `json:"vehicleId"`
	Title          string                                     `json:"title"`
	ExternalID     string                                     `json:"externalId,omitempty"`
	Acquisition    Pair                                       `json:"acquisition"`
	ReferencePrice Pair                                       `json:"referencePrice"`
	TargetPrice    Pair                                       `json:"targetPrice"`
	PublicPrice    Pair                                       `json:"publicPrice"`
	ExpenseCount   int                                        `json:"expenseCount"`
	ExpensesARS    map[domain.ExpenseCategory]decimal.Decimal `json:"expensesArs,omitempty"`
	TotalCost      *CostTotal                                 `json:"totalCost,omitempty"`
	MarginUSD      *decimal.Decimal                           `json:"marginUsd,omitempty"`
	Warnings       []string                                   `json:"warnings,omitempty"`
}

// Report builds the valuation report of a vehicle. currentRate is only used to display the secondary
// currency of prices that carry no rate of their own.
func Report(v domain.Vehicle, currentRate decimal.Decimal) VehicleReport {
	val := FromVehicle(v)
	r := VehicleReport{
		VehicleID:      v.ID,
		Title:          fmt.Sprintf("%s %s %d", v.Brand, v.Model, v.Year),
		ExternalID:     v.ExternalID,
		Acquisition:    DisplayPair(val.AcquisitionCost, currentRate),
		ReferencePrice: DisplayPair(val.ReferencePrice, currentRate),
		TargetPrice:    DisplayPair(val.TargetPrice, currentRate),
		PublicPrice:    DisplayPair(val.PublicPrice, currentRate),
		ExpenseCount:   len(val.Expenses),
	}

	if len(val.Expenses) > 0 {
		byCategory, skipped := ExpensesByCategory(val.Expenses)
		r.ExpensesARS = byCategory
		if skipped > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%d expenses without exchange rate left out of category totals", skipped))
		}
	}

	total, err := TotalCost(val)
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("total cost unavailable: %v", err))
		return r
	}
	r.TotalCost = &total
	if total.USD == nil {
		r.Warnings = append(r.Warnings, "total cost in USD unavailable: acquisition has no exchange rate")
		return r
	}

	if val.PublicPrice.IsSet() {
		publicUSD, err := domain.Convert(*val.PublicPrice, domain.USD)
		if err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("margin unavailable: %v", err))
			return r
		}
		margin := publicUSD.Amount.Sub(*total.USD)
		r.MarginUSD = &margin
	}

	return r
}
