package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/carvalue/internal/domain"
)

func usd(amount string, rate string) *domain.Money {
	m := domain.NewMoney(decimal.RequireFromString(amount), domain.USD, decimal.RequireFromString(rate), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	return &m
}

func testVehicles() []domain.Vehicle {
	synced := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	return []domain.Vehicle{
		{
			ID: uuid.New(), Brand: "Volkswagen", Model: "Gol", Year: 2017,
			Status:          domain.VehicleAvailable,
			AcquisitionCost: usd("6000", "1000"),
			PublicPrice:     usd("7500", "1000"),
		},
		{
			ID: uuid.New(), Brand: "Fiat", Model: "Cronos", Year: 2021,
			Status:            domain.VehicleReserved,
			ExternalID:        "fiat-cronos",
			ReferencePrice:    usd("14000", "1100"),
			ReferenceSyncedAt: &synced,
		},
	}
}

type mockLister struct {
	vehicles []domain.Vehicle
	err      error
}

func (m *mockLister) List(_ context.Context) ([]domain.Vehicle, error) {
	return m.vehicles, m.err
}

type mockRateReader struct {
	rate decimal.Decimal
	err  error
}

func (m *mockRateReader) CachedRate(_ context.Context) (domain.CurrentRate, error) {
	return domain.CurrentRate{Rate: m.rate}, m.err
}

type mockWriter struct {
	rows   []ValuationRow
	sweeps []domain.SweepResult
}

func (m *mockWriter) Write(_ context.Context, rows []ValuationRow) error {
	m.rows = rows
	return nil
}

func (m *mockWriter) AppendSweep(_ context.Context, result domain.SweepResult) error {
	m.sweeps = append(m.sweeps, result)
	return nil
}

func TestBuildRowsSortedByTitle(t *testing.T) {
	rows := buildRows(testVehicles(), decimal.RequireFromString("1200"))

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Title != "Fiat Cronos 2021" || rows[1].Title != "Volkswagen Gol 2017" {
		t.Errorf("titles = %q, %q", rows[0].Title, rows[1].Title)
	}
}

func TestRowValues(t *testing.T) {
	rows := buildRows(testVehicles(), decimal.RequireFromString("1200"))

	cronos := rowValues(rows[0])
	if len(cronos) != len(reportHeader) {
		t.Fatalf("columns = %d, want %d", len(cronos), len(reportHeader))
	}
	if cronos[3] != "US$ 14.000" || cronos[4] != "$ 15.400.000" {
		t.Errorf("reference = %v / %v", cronos[3], cronos[4])
	}
	if cronos[9] != nil || cronos[10] != nil {
		t.Errorf("total cost = %v / %v, want empty without acquisition", cronos[9], cronos[10])
	}
	if cronos[13] != "2024-04-02" {
		t.Errorf("synced = %v, want 2024-04-02", cronos[13])
	}
	if cronos[14] == "" {
		t.Error("notes empty, want total cost warning")
	}

	gol := rowValues(rows[1])
	if gol[9] != 6000000.0 || gol[10] != 6000.0 {
		t.Errorf("total cost = %v / %v, want 6000000 / 6000", gol[9], gol[10])
	}
	if gol[11] != 1500.0 {
		t.Errorf("margin = %v, want 1500", gol[11])
	}
	if gol[1] != "available" {
		t.Errorf("status = %v, want available", gol[1])
	}
}

func TestServiceExport(t *testing.T) {
	writer := &mockWriter{}
	svc := NewService(&mockLister{vehicles: testVehicles()}, &mockRateReader{rate: decimal.RequireFromString("1200")}, writer)

	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if len(writer.rows) != 2 {
		t.Errorf("rows written = %d, want 2", len(writer.rows))
	}
}

func TestServiceExportWithoutCachedRate(t *testing.T) {
	writer := &mockWriter{}
	svc := NewService(&mockLister{vehicles: testVehicles()}, &mockRateReader{err: domain.ErrNotFound}, writer)

	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	// stored rates still give the secondary figure
	if got := writer.rows[0].ReferencePrice.Secondary; got != "$ 15.400.000" {
		t.Errorf("secondary = %q, want $ 15.400.000", got)
	}
}

func TestServiceExportListError(t *testing.T) {
	svc := NewService(&mockLister{err: errors.New("db down")}, &mockRateReader{}, &mockWriter{})

	if err := svc.Export(context.Background()); err == nil {
		t.Error("Export() error = nil, want error")
	}
}

func TestAfterSweepLogsAndExports(t *testing.T) {
	writer := &mockWriter{}
	svc := NewService(&mockLister{vehicles: testVehicles()}, &mockRateReader{rate: decimal.RequireFromString("1200")}, writer)

	result := domain.SweepResult{Applied: 1, Skipped: 1}
	if err := svc.AfterSweep(context.Background(), result); err != nil {
		t.Fatalf("AfterSweep() error: %v", err)
	}
	if len(writer.sweeps) != 1 || writer.sweeps[0].Applied != 1 {
		t.Errorf("sweeps = %+v, want one logged sweep", writer.sweeps)
	}
	if len(writer.rows) != 2 {
		t.Errorf("rows written = %d, want 2", len(writer.rows))
	}
}

func TestSweepValues(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got := sweepValues(domain.SweepResult{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Applied:    3,
		Skipped:    5,
		Errored:    1,
	})

	if got[0] != "2024-05-01 10:00:00" {
		t.Errorf("started = %v", got[0])
	}
	if got[1] != "1m30s" {
		t.Errorf("duration = %v, want 1m30s", got[1])
	}
	if got[2] != 3 || got[3] != 5 || got[4] != 1 {
		t.Errorf("counts = %v", got[2:])
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valuations.xlsx")
	rows := buildRows(testVehicles(), decimal.RequireFromString("1200"))

	if err := NewXLSXWriter(path).Write(context.Background(), rows); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 1 || got[0] != valuationsSheet {
		t.Errorf("sheets = %v, want [%s]", got, valuationsSheet)
	}

	header, err := f.GetCellValue(valuationsSheet, "A1")
	if err != nil || header != "Vehicle" {
		t.Errorf("A1 = %q (%v), want Vehicle", header, err)
	}
	title, err := f.GetCellValue(valuationsSheet, "A2")
	if err != nil || title != "Fiat Cronos 2021" {
		t.Errorf("A2 = %q (%v), want Fiat Cronos 2021", title, err)
	}
	ref, err := f.GetCellValue(valuationsSheet, "D2")
	if err != nil || ref != "US$ 14.000" {
		t.Errorf("D2 = %q (%v), want US$ 14.000", ref, err)
	}
}
