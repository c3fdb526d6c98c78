package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
	"github.com/mtlprog/carvalue/internal/pricing"
)

// PriceProvider is the external pricing provider.
type PriceProvider interface {
	LastModified(ctx context.Context) (time.Time, error)
	ReferencePrice(ctx context.Context, externalID string, year int) (pricing.Quote, error)
}

// VehicleStore is the part of the record store the reconciliation engine reads and writes.
type VehicleStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Vehicle, error)
	List(ctx context.Context) ([]domain.Vehicle, error)
	ListWithExternalID(ctx context.Context) ([]domain.Vehicle, error)
	UpdateReferencePrice(ctx context.Context, id uuid.UUID, price domain.Money, syncedAt time.Time) error
}

// Executor performs the per-vehicle fetch, compare and write step.
type Executor struct {
	prices    PriceProvider
	vehicles  VehicleStore
	threshold decimal.Decimal
	itemDelay time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// NewExecutor creates a new sync Executor.
func NewExecutor(prices PriceProvider, vehicles VehicleStore, cfg Config) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		prices:    prices,
		vehicles:  vehicles,
		threshold: cfg.MaterialityThreshold,
		itemDelay: cfg.ItemDelay,
		timeout:   cfg.ProviderTimeout,
		now:       time.Now,
	}
}

// Sweep reconciles vehicles one at a time, pausing between provider calls. A failure is recorded in
// the vehicle's outcome and never stops the sweep; updates already written stay written. Cancelling ctx
// stops the sweep early and marks the result as interrupted.
func (e *Executor) Sweep(ctx context.Context, vehicles []domain.Vehicle, rate decimal.Decimal) domain.SweepResult {
	result := domain.SweepResult{StartedAt: e.now()}

	for i, v := range vehicles {
		if i > 0 && !e.pause(ctx) {
			slog.Warn("sweep interrupted", "remaining", len(vehicles)-i, "error", ctx.Err())
			result.Interrupted = true
			break
		}

		out := e.SyncVehicle(ctx, v, rate)
		if out.Err != nil {
			slog.Warn("reference price sync failed", "vehicle", v.ID, "externalId", v.ExternalID, "error", out.Err)
		}
		result.Record(out)
	}

	result.FinishedAt = e.now()
	return result
}

// SyncVehicle fetches the provider's reference price for v and writes it back when it differs from the
// stored one by at least the materiality threshold. rate (ARS per USD) tags the new price and is used
// to compare against a stored price in the other currency.
func (e *Executor) SyncVehicle(ctx context.Context, v domain.Vehicle, rate decimal.Decimal) domain.SyncOutcome {
	out := domain.SyncOutcome{VehicleID: v.ID, PreviousPrice: v.ReferencePrice}

	if !v.HasExternalID() {
		out.Err = fmt.Errorf("vehicle %s: %w", v.ID, domain.ErrNoExternalIdentifier)
		return out
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	quote, err := e.prices.ReferencePrice(fetchCtx, v.ExternalID, v.Year)
	cancel()
	if err != nil {
		out.Err = fmt.Errorf("%w: fetching %s: %w", domain.ErrVehicleSyncFailed, v.ExternalID, err)
		return out
	}

	now := e.now()
	newPrice := domain.NewMoney(quote.Amount, quote.Currency, rate, now)
	out.NewPrice = &newPrice

	if !e.material(v.ReferencePrice, quote, rate) {
		return out
	}

	if err := e.vehicles.UpdateReferencePrice(ctx, v.ID, newPrice, now); err != nil {
		out.Err = fmt.Errorf("%w: writing %s: %w", domain.ErrVehicleSyncFailed, v.ID, err)
		return out
	}

	out.Applied = true
	return out
}

// material compares the stored price with the quote in the quote's currency. A stored price in the
// other currency is valued at rate, falling back to its own rate; if neither works the quote wins.
func (e *Executor) material(stored *domain.Money, quote pricing.Quote, rate decimal.Decimal) bool {
	if !stored.IsSet() {
		return quote.Amount.IsPositive()
	}

	old, err := domain.ConvertAtRate(*stored, quote.Currency, rate)
	if err != nil {
		old, err = domain.Convert(*stored, quote.Currency)
		if err != nil {
			return quote.Amount.IsPositive()
		}
	}

	return domain.IsMaterial(old.Amount, quote.Amount, e.threshold)
}

func (e *Executor) pause(ctx context.Context) bool {
	if e.itemDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(e.itemDelay):
		return true
	}
}
