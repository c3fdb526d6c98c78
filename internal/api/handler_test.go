package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

type mockSync struct {
	status   domain.SyncStatus
	outcome  domain.SyncOutcome
	err      error
	sweeps   chan struct{}
	busy     bool
	manualID uuid.UUID
}

func (m *mockSync) Status(_ context.Context) (domain.SyncStatus, error) {
	return m.status, m.err
}

func (m *mockSync) ManualUpdate(_ context.Context, id uuid.UUID) (domain.SyncOutcome, error) {
	m.manualID = id
	return m.outcome, m.err
}

func (m *mockSync) StartSweep(_ context.Context) bool {
	if m.busy {
		return false
	}
	if m.sweeps != nil {
		m.sweeps <- struct{}{}
	}
	return true
}

type mockVehicles struct {
	vehicles map[uuid.UUID]domain.Vehicle
}

func (m *mockVehicles) Get(_ context.Context, id uuid.UUID) (domain.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return domain.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

type mockRates struct {
	current    domain.CurrentRate
	currentErr error
	historical map[string]decimal.Decimal
}

func (m *mockRates) CurrentRate(_ context.Context) (domain.CurrentRate, error) {
	return m.current, m.currentErr
}

func (m *mockRates) CachedRate(_ context.Context) (domain.CurrentRate, error) {
	return m.current, m.currentErr
}

func (m *mockRates) HistoricalRate(_ context.Context, date time.Time) (*decimal.Decimal, error) {
	r, ok := m.historical[date.Format(domain.DateLayout)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func newTestServer(sync *mockSync, vehicles *mockVehicles, rates *mockRates, adminKey string) http.Handler {
	return NewServer("0", NewHandler(sync, vehicles, rates), NewRateHandler(rates), adminKey).Handler
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetSyncStatus(t *testing.T) {
	sync := &mockSync{status: domain.SyncStatus{TotalEligible: 4, TotalWithExternalID: 3, CoveragePercentage: 75, Running: true, PollInterval: "1h0m0s"}}
	h := newTestServer(sync, &mockVehicles{}, &mockRates{}, "")

	w := do(h, http.MethodGet, "/api/v1/sync/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got domain.SyncStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.CoveragePercentage != 75 || !got.Running {
		t.Errorf("status = %+v", got)
	}
}

func TestSyncVehicleErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", fmt.Errorf("loading: %w", domain.ErrNotFound), http.StatusNotFound},
		{"no external id", domain.ErrNoExternalIdentifier, http.StatusUnprocessableEntity},
		{"provider failure", fmt.Errorf("%w: timeout", domain.ErrVehicleSyncFailed), http.StatusBadGateway},
		{"other", fmt.Errorf("acquiring sweep lock: %w", context.Canceled), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := &mockSync{err: tt.err}
			h := newTestServer(sync, &mockVehicles{}, &mockRates{}, "")
			id := uuid.New()

			w := do(h, http.MethodPost, "/api/v1/vehicles/"+id.String()+"/sync", "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if sync.manualID != id {
				t.Errorf("manual update id = %s, want %s", sync.manualID, id)
			}
		})
	}
}

func TestSyncVehicleInvalidID(t *testing.T) {
	h := newTestServer(&mockSync{}, &mockVehicles{}, &mockRates{}, "")

	w := do(h, http.MethodPost, "/api/v1/vehicles/not-a-uuid/sync", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMutatingRoutesRequireAuth(t *testing.T) {
	h := newTestServer(&mockSync{sweeps: make(chan struct{}, 1)}, &mockVehicles{}, &mockRates{}, "secret-key")

	paths := []string{"/api/v1/sync/run", "/api/v1/vehicles/" + uuid.NewString() + "/sync"}
	for _, p := range paths {
		if w := do(h, http.MethodPost, p, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("POST %s without token = %d, want 401", p, w.Code)
		}
	}

	if w := do(h, http.MethodGet, "/api/v1/sync/status", ""); w.Code != http.StatusOK {
		t.Errorf("GET status without token = %d, want 200", w.Code)
	}
}

func TestRunSweepStartsInBackground(t *testing.T) {
	sync := &mockSync{sweeps: make(chan struct{}, 1)}
	h := newTestServer(sync, &mockVehicles{}, &mockRates{}, "secret-key")

	w := do(h, http.MethodPost, "/api/v1/sync/run", "secret-key")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	select {
	case <-sync.sweeps:
	case <-time.After(time.Second):
		t.Error("sweep was not started")
	}
}

func TestRunSweepConflictWhileBusy(t *testing.T) {
	h := newTestServer(&mockSync{busy: true}, &mockVehicles{}, &mockRates{}, "")

	if w := do(h, http.MethodPost, "/api/v1/sync/run", ""); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestGetValuation(t *testing.T) {
	acq := domain.NewMoney(decimal.NewFromInt(8000), domain.USD, decimal.NewFromInt(1000), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	v := domain.Vehicle{ID: uuid.New(), Brand: "Renault", Model: "Sandero", Year: 2018, AcquisitionCost: &acq}
	vehicles := &mockVehicles{vehicles: map[uuid.UUID]domain.Vehicle{v.ID: v}}
	h := newTestServer(&mockSync{}, vehicles, &mockRates{current: domain.CurrentRate{Rate: decimal.NewFromInt(1200)}}, "")

	w := do(h, http.MethodGet, "/api/v1/vehicles/"+v.ID.String()+"/valuation", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		Title       string `json:"title"`
		Acquisition struct {
			Primary   string `json:"primary"`
			Secondary string `json:"secondary"`
		} `json:"acquisition"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Title != "Renault Sandero 2018" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Acquisition.Primary != "US$ 8.000" || got.Acquisition.Secondary != "$ 8.000.000" {
		t.Errorf("acquisition = %+v", got.Acquisition)
	}

	if w := do(h, http.MethodGet, "/api/v1/vehicles/"+uuid.NewString()+"/valuation", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown vehicle status = %d, want 404", w.Code)
	}
}

func TestGetCurrentRate(t *testing.T) {
	rates := &mockRates{current: domain.CurrentRate{Rate: decimal.NewFromInt(1215), AsOf: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), Degraded: true}}
	h := newTestServer(&mockSync{}, &mockVehicles{}, rates, "")

	w := do(h, http.MethodGet, "/api/v1/rates/current", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"date":"2024-06-03"`) || !strings.Contains(body, `"degraded":true`) {
		t.Errorf("body = %s", body)
	}

	rates.currentErr = fmt.Errorf("%w: no cached rate", domain.ErrRateFetchFailed)
	if w := do(h, http.MethodGet, "/api/v1/rates/current", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetRateByDate(t *testing.T) {
	rates := &mockRates{historical: map[string]decimal.Decimal{"2024-01-10": decimal.NewFromInt(1000)}}
	h := newTestServer(&mockSync{}, &mockVehicles{}, rates, "")

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/rates/2024-01-10", http.StatusOK},
		{"/api/v1/rates/2024-01-11", http.StatusNotFound},
		{"/api/v1/rates/10-01-2024", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(h, http.MethodGet, tt.path, ""); w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}
