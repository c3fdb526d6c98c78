package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
	"github.com/mtlprog/carvalue/internal/valuation"
)

// SyncService is the reconciliation scheduler as seen by the HTTP layer.
type SyncService interface {
	Status(ctx context.Context) (domain.SyncStatus, error)
	ManualUpdate(ctx context.Context, id uuid.UUID) (domain.SyncOutcome, error)
	StartSweep(ctx context.Context) bool
}

// VehicleReader loads a single vehicle record.
type VehicleReader interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Vehicle, error)
}

// Handler provides HTTP endpoints for sync control and vehicle valuation.
type Handler struct {
	sync     SyncService
	vehicles VehicleReader
	rates    RateService
}

// NewHandler creates a new API handler.
func NewHandler(sync SyncService, vehicles VehicleReader, rates RateService) *Handler {
	return &Handler{sync: sync, vehicles: vehicles, rates: rates}
}

// GetSyncStatus handles GET /api/v1/sync/status.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.Status(r.Context())
	if err != nil {
		slog.Error("failed to get sync status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RunSweep handles POST /api/v1/sync/run. The sweep runs in the background; progress is visible
// through the status endpoint. A request made while another sweep is running gets 409.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if !h.sync.StartSweep(context.WithoutCancel(r.Context())) {
		writeError(w, http.StatusConflict, "sweep already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// SyncVehicle handles POST /api/v1/vehicles/{id}/sync.
func (h *Handler) SyncVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := vehicleID(w, r)
	if !ok {
		return
	}

	out, err := h.sync.ManualUpdate(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "vehicle not found")
		case errors.Is(err, domain.ErrNoExternalIdentifier):
			writeError(w, http.StatusUnprocessableEntity, "vehicle has no pricing identifier")
		case errors.Is(err, domain.ErrVehicleSyncFailed):
			slog.Warn("manual sync failed", "vehicle", id, "error", err)
			writeError(w, http.StatusBadGateway, "pricing provider sync failed")
		default:
			slog.Error("manual sync failed", "vehicle", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetValuation handles GET /api/v1/vehicles/{id}/valuation.
func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := vehicleID(w, r)
	if !ok {
		return
	}

	v, err := h.vehicles.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		slog.Error("failed to get vehicle", "vehicle", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rate := decimal.Zero
	if current, err := h.rates.CachedRate(r.Context()); err != nil {
		slog.Warn("no cached rate for valuation", "error", err)
	} else {
		rate = current.Rate
	}

	writeJSON(w, http.StatusOK, valuation.Report(v, rate))
}

func vehicleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vehicle id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
