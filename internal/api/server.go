package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, rates *RateHandler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sync/status", handler.GetSyncStatus)
	mux.HandleFunc("GET /api/v1/vehicles/{id}/valuation", handler.GetValuation)
	mux.HandleFunc("GET /api/v1/rates/current", rates.GetCurrentRate)
	mux.HandleFunc("GET /api/v1/rates/{date}", rates.GetRateByDate)

	protect := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey == "" {
			return h
		}
		return requireAuth(adminAPIKey, h)
	}
	mux.Handle("POST /api/v1/sync/run", protect(handler.RunSweep))
	mux.Handle("POST /api/v1/vehicles/{id}/sync", protect(handler.SyncVehicle))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
