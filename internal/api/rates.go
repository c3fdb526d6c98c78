package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/carvalue/internal/domain"
)

// RateService is the FX rate provider as seen by the HTTP layer.
type RateService interface {
	CurrentRate(ctx context.Context) (domain.CurrentRate, error)
	CachedRate(ctx context.Context) (domain.CurrentRate, error)
	HistoricalRate(ctx context.Context, date time.Time) (*decimal.Decimal, error)
}

// RateHandler provides HTTP endpoints for exchange rates.
type RateHandler struct {
	rates RateService
}

// NewRateHandler creates a new rate handler.
func NewRateHandler(rates RateService) *RateHandler {
	return &RateHandler{rates: rates}
}

type rateResponse struct {
	Date     string          `json:"date"`
	Rate     decimal.Decimal `json:"rate"`
	Degraded bool            `json:"degraded,omitempty"`
}

// GetCurrentRate handles GET /api/v1/rates/current.
func (h *RateHandler) GetCurrentRate(w http.ResponseWriter, r *http.Request) {
	current, err := h.rates.CurrentRate(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRateFetchFailed) {
			writeError(w, http.StatusServiceUnavailable, "exchange rate unavailable")
			return
		}
		slog.Error("failed to get current rate", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{
		Date:     current.AsOf.Format(domain.DateLayout),
		Rate:     current.Rate,
		Degraded: current.Degraded,
	})
}

// GetRateByDate handles GET /api/v1/rates/{date}.
func (h *RateHandler) GetRateByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.Parse(domain.DateLayout, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	rate, err := h.rates.HistoricalRate(r.Context(), date)
	if err != nil {
		slog.Error("failed to get historical rate", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rate == nil {
		writeError(w, http.StatusNotFound, "no rate recorded for date")
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Date: dateStr, Rate: *rate})
}
