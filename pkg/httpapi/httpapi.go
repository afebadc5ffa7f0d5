// Package httpapi serves the admin HTTP surface every Skitter runtime
// exposes alongside its cluster transport: liveness, Prometheus metrics,
// and a human-readable status snapshot, routed with chi the way the
// rest of the stack's HTTP concerns are wired.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/registry"
)

// Status is the /status response: this runtime's mode, name, connected
// peers, and active deployments.
type Status struct {
	Mode        mode.Mode `json:"mode"`
	Name        string    `json:"name"`
	Connected   []string  `json:"connected"`
	Deployments int       `json:"deployments"`
}

// Deps bundles the services the status/health handlers read from.
type Deps struct {
	Mode     mode.Mode
	Name     string
	Registry *registry.Registry
	Store    *component.Store
}

// NewRouter builds the chi router serving /healthz, /metrics, and /status.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		deployments := 0
		if deps.Store != nil {
			deployments = deps.Store.DeploymentCount()
		}
		connected := []string{}
		if deps.Registry != nil {
			connected = deps.Registry.All()
		}
		status := Status{
			Mode:        deps.Mode,
			Name:        deps.Name,
			Connected:   connected,
			Deployments: deployments,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	return r
}
