package domain

import "errors"

var (
	// ErrUnconvertibleValue marks a Money without a usable exchange rate. Callers treat the value as
	// unknown, never as zero.
	ErrUnconvertibleValue = errors.New("unconvertible value: missing exchange rate")

	// ErrRateFetchFailed indicates the external FX source could not be reached.
	ErrRateFetchFailed = errors.New("exchange rate fetch failed")

	// ErrProviderUnreachable indicates the external pricing provider could not be reached.
	ErrProviderUnreachable = errors.New("pricing provider unreachable")

	// ErrVehicleSyncFailed wraps a per-vehicle fetch or write failure during reconciliation.
	ErrVehicleSyncFailed = errors.New("vehicle sync failed")

	// ErrNoExternalIdentifier indicates a vehicle carries no pricing provider identifier.
	ErrNoExternalIdentifier = errors.New("vehicle has no external pricing identifier")

	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
