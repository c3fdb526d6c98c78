package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncOutcome is the result of reconciling one vehicle's reference price.
type SyncOutcome struct {
	VehicleID     uuid.UUID `json:"vehicleId"`
	PreviousPrice *Money    `json:"previousPrice,omitempty"`
	NewPrice      *Money    `json:"newPrice,omitempty"`
	Applied       bool      `json:"applied"`
	Err           error     `json:"-"`
}

// SweepResult aggregates the outcomes of one sweep over all eligible vehicles.
type SweepResult struct {
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Outcomes    []SyncOutcome `json:"-"`
	Applied     int           `json:"applied"`
	Skipped     int           `json:"skipped"`
	Errored     int           `json:"errored"`
	Interrupted bool          `json:"interrupted,omitempty"`
}

// Record adds an outcome to the sweep counters.
func (r *SweepResult) Record(o SyncOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Err != nil:
		r.Errored++
	case o.Applied:
		r.Applied++
	default:
		r.Skipped++
	}
}

// SyncStatus is the read-only view over the scheduler and pricing coverage.
type SyncStatus struct {
	TotalEligible       int          `json:"totalEligible"`
	TotalWithExternalID int          `json:"totalWithExternalId"`
	CoveragePercentage  float64      `json:"coveragePercentage"`
	LastUpdateCheck     *time.Time   `json:"lastUpdateCheck"`
	Running             bool         `json:"running"`
	PollInterval        string       `json:"pollInterval"`
	LastSweep           *SweepResult `json:"lastSweep,omitempty"`
}
