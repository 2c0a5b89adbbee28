package service

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/etnz/kasa/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics and /healthz. Health is 503 when the last cycle
// failed.
func Handler(st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		lastSuccess, _ := st.Setting(r.Context(), store.KeyLastSuccess)
		lastError, _ := st.Setting(r.Context(), store.KeyLastError)
		status := "ok"
		code := http.StatusOK
		if lastError != "" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":          status,
			"last_success_ts": lastSuccess,
			"last_error":      lastError,
		})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
