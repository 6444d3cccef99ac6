// Package app assembles the registry's HTTP surface.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	constantsHandler "carbonregistry/internal/constants/handler"
	"carbonregistry/internal/platform/metrics"
	"carbonregistry/internal/platform/middleware"
	projectHandler "carbonregistry/internal/project/handler"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/httputil"
)

// Check is a readiness probe for one dependency.
type Check func(ctx context.Context) error

// Deps are the services and collaborators behind the router.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Ledger    projectHandler.Service
	Constants constantsHandler.Service
	Checks    map[string]Check
	// RequestTimeout bounds each request; zero means 30s.
	RequestTimeout time.Duration
}

// Router builds the full route tree with the shared middleware chain.
func Router(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Actor)

	projectHandler.New(d.Ledger, d.Logger).Register(r)
	constantsHandler.New(d.Constants, d.Logger).Register(r)

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", healthHandler(d.Checks))
	return r
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			httputil.WriteError(w, dErrors.New(dErrors.CodeStorageUnavailable, fmt.Sprintf("unhealthy dependencies: %v", status)))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	}
}
