package export

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
	"github.com/mtlprog/carvalue/internal/valuation"
)

// ValuationRow is one vehicle line in the valuation report.
type ValuationRow struct {
	valuation.VehicleReport
	Status            domain.VehicleStatus
	ReferenceSyncedAt *time.Time
}

// SheetWriter writes valuation rows to a spreadsheet destination.
type SheetWriter interface {
	Write(ctx context.Context, rows []ValuationRow) error
}

// SweepLogger is implemented by writers that also keep a history of sweeps.
type SweepLogger interface {
	AppendSweep(ctx context.Context, result domain.SweepResult) error
}

// VehicleLister lists in-stock vehicles.
type VehicleLister interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
}

// RateReader returns the last known ARS per USD rate without calling the FX source.
type RateReader interface {
	CachedRate(ctx context.Context) (domain.CurrentRate, error)
}

// Service builds the valuation report and delegates writing to a SheetWriter.
type Service struct {
	vehicles VehicleLister
	rates    RateReader
	writer   SheetWriter
}

// NewService creates a new export Service.
func NewService(vehicles VehicleLister, rates RateReader, writer SheetWriter) *Service {
	return &Service{
		vehicles: vehicles,
		rates:    rates,
		writer:   writer,
	}
}

// Export writes the current valuation of every in-stock vehicle.
func (s *Service) Export(ctx context.Context) error {
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return fmt.Errorf("listing vehicles: %w", err)
	}

	rate := decimal.Zero
	if current, err := s.rates.CachedRate(ctx); err != nil {
		slog.Warn("export: no cached rate, secondary prices use stored rates only", "error", err)
	} else {
		rate = current.Rate
	}

	rows := buildRows(vehicles, rate)
	if err := s.writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("writing valuation report: %w", err)
	}

	slog.Info("export: valuation report written", "vehicles", len(rows))
	return nil
}

// AfterSweep re-exports the report and logs the sweep when the writer supports it.
// Implements reconcile.AfterSweepHook.
func (s *Service) AfterSweep(ctx context.Context, result domain.SweepResult) error {
	if logger, ok := s.writer.(SweepLogger); ok {
		if err := logger.AppendSweep(ctx, result); err != nil {
			slog.Warn("export: appending sweep log failed", "error", err)
		}
	}
	return s.Export(ctx)
}

// buildRows renders each vehicle's report, ordered by title.
func buildRows(vehicles []domain.Vehicle, rate decimal.Decimal) []ValuationRow {
	rows := lo.Map(vehicles, func(v domain.Vehicle, _ int) ValuationRow {
		return ValuationRow{
			VehicleReport:     valuation.Report(v, rate),
			Status:            v.Status,
			ReferenceSyncedAt: v.ReferenceSyncedAt,
		}
	})
	slices.SortStableFunc(rows, func(a, b ValuationRow) int { return strings.Compare(a.Title, b.Title) })
	return rows
}

// reportHeader is shared by every writer.
var reportHeader = []any{
	"Vehicle", "Status", "External ID",
	"Reference", "Reference (other)",
	"Target", "Target (other)",
	"Public", "Public (other)",
	"Total cost ARS", "Total cost USD", "Margin USD",
	"Expenses", "Synced", "Notes",
}

// rowValues flattens a row in reportHeader order. Missing numbers are nil.
func rowValues(row ValuationRow) []any {
	var totalARS, totalUSD any
	if row.TotalCost != nil {
		totalARS = toFloat(row.TotalCost.ARS)
		totalUSD = ptrFloat(row.TotalCost.USD)
	}

	synced := ""
	if row.ReferenceSyncedAt != nil {
		synced = row.ReferenceSyncedAt.UTC().Format(domain.DateLayout)
	}

	return []any{
		row.Title, string(row.Status), row.ExternalID,
		row.ReferencePrice.Primary, row.ReferencePrice.Secondary,
		row.TargetPrice.Primary, row.TargetPrice.Secondary,
		row.PublicPrice.Primary, row.PublicPrice.Secondary,
		totalARS, totalUSD, ptrFloat(row.MarginUSD),
		row.ExpenseCount, synced, strings.Join(row.Warnings, "; "),
	}
}

// sweepValues flattens a sweep summary for the sync log.
func sweepValues(result domain.SweepResult) []any {
	return []any{
		result.StartedAt.UTC().Format(time.DateTime),
		result.FinishedAt.Sub(result.StartedAt).Round(time.Second).String(),
		result.Applied, result.Skipped, result.Errored,
	}
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
