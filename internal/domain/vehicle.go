package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VehicleStatus is the stock state of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable VehicleStatus = "available"
	VehicleReserved  VehicleStatus = "reserved"
	VehicleSold      VehicleStatus = "sold"
)

// ExpenseCategory classifies an expense incurred on a vehicle.
type ExpenseCategory string

const (
	ExpenseRepair    ExpenseCategory = "repair"
	ExpensePaperwork ExpenseCategory = "paperwork"
	ExpenseCleaning  ExpenseCategory = "cleaning"
	ExpenseTransport ExpenseCategory = "transport"
	ExpenseParts     ExpenseCategory = "parts"
	ExpenseOther     ExpenseCategory = "other"
)

// ExpenseItem is a cost incurred on a vehicle after acquisition. It has no lifecycle of its own.
type ExpenseItem struct {
	Money       Money           `json:"money"`
	Category    ExpenseCategory `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
}

// Vehicle is the slice of a vehicle record the valuation engine reads and writes.
type Vehicle struct {
	ID                uuid.UUID     `json:"id"`
	Brand             string        `json:"brand"`
	Model             string        `json:"model"`
	Year              int           `json:"year"`
	Status            VehicleStatus `json:"status"`
	ExternalID        string        `json:"externalId,omitempty"` // pricing provider model code
	AcquisitionCost   *Money        `json:"acquisitionCost,omitempty"`
	Expenses          []ExpenseItem `json:"expenses"`
	ReferencePrice    *Money        `json:"referencePrice,omitempty"`
	TargetPrice       *Money        `json:"targetPrice,omitempty"`
	PublicPrice       *Money        `json:"publicPrice,omitempty"`
	ReferenceSyncedAt *time.Time    `json:"referenceSyncedAt,omitempty"`
}

// HasExternalID reports whether the vehicle can be queried at the pricing provider.
func (v Vehicle) HasExternalID() bool {
	return strings.TrimSpace(v.ExternalID) != ""
}

// InStock reports whether the vehicle still counts towards pricing coverage.
func (v Vehicle) InStock() bool {
	return v.Status != VehicleSold
}
