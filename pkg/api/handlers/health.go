package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// healthCheckKey is looked up on every store by the store health check. It is
// never written, so a healthy store answers NotFound.
const healthCheckKey = "bitsgate-health-check"

// StoreLister exposes the per-kind clients the health check queries.
type StoreLister interface {
	Client(kind gateway.Kind) (blobstore.Client, error)
}

// HealthHandler handles health check endpoints.
//
//   - Liveness: Is the server process running?
//   - Readiness: Is every resource kind backed by a store?
//   - Store health: Can every store answer a lookup?
type HealthHandler struct {
	stores StoreLister
}

// NewHealthHandler creates a new health handler.
//
// stores may be nil, in which case readiness and store health checks
// return unhealthy status.
func NewHealthHandler(stores StoreLister) *HealthHandler {
	return &HealthHandler{stores: stores}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "bitsgate",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable if the gateway is not initialized or a
// resource kind has no store.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.stores == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("gateway not initialized"))
		return
	}

	backends := make(map[string]string, len(gateway.Kinds))
	for _, kind := range gateway.Kinds {
		c, err := h.stores.Client(kind)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
			return
		}
		backends[string(kind)] = backendName(c)
	}

	writeJSON(w, http.StatusOK, healthyResponse(backends))
}

// StoreHealth represents the health status of a single store.
type StoreHealth struct {
	Kind    string `json:"kind"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StoresResponse represents the detailed store health response.
type StoresResponse struct {
	Stores []StoreHealth `json:"stores"`
}

// Stores handles GET /health/stores.
//
// Every store is asked for a blob that never exists. NotFound means the
// backend answered; any other error marks the store unhealthy. Returns 503
// if any store is unhealthy.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.stores == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("gateway not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := StoresResponse{Stores: make([]StoreHealth, 0, len(gateway.Kinds))}
	allHealthy := true

	for _, kind := range gateway.Kinds {
		health := StoreHealth{Kind: string(kind)}

		c, err := h.stores.Client(kind)
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
			response.Stores = append(response.Stores, health)
			continue
		}
		health.Backend = backendName(c)

		start := time.Now()
		_, err = c.Blob(ctx, healthCheckKey)
		health.Latency = time.Since(start).String()

		if err != nil && !bitserrors.IsNotFound(err) {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}

		response.Stores = append(response.Stores, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}

func backendName(c blobstore.Client) string {
	if c.Local() {
		return "local"
	}
	return "remote"
}
