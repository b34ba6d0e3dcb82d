package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"socialid/internal/auth/handler"
	"socialid/internal/platform/metrics"
	platformmw "socialid/internal/platform/middleware"
	"socialid/pkg/platform/httputil"
	"socialid/pkg/platform/middleware/metadata"
	"socialid/pkg/platform/middleware/request"
	"socialid/pkg/platform/middleware/requesttime"
)

type healthFunc func(ctx context.Context) error

func newRouter(auth *handler.Handler, health healthFunc, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recover(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(platformmw.Metrics(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := health(ctx); err != nil {
			logger.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", auth.Register)
	return r
}
