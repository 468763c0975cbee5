package handlers

import (
	"net/http"
	"sync"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/http/dto"
)

const serviceName = "checkout-client"

type HealthHandler struct {
	Probes []clients.HealthProbe
}

func (h *HealthHandler) Service(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Service: serviceName})
}

// Upstreams probes every upstream concurrently. Status is "degraded" when
// any of them is down.
func (h *HealthHandler) Upstreams(w http.ResponseWriter, r *http.Request) {
	results := make([]clients.HealthResult, len(h.Probes))

	var wg sync.WaitGroup
	wg.Add(len(h.Probes))
	for i := range h.Probes {
		go func() {
			defer wg.Done()
			results[i] = clients.CheckHealth(r.Context(), h.Probes[i])
		}()
	}
	wg.Wait()

	status := "ok"
	for _, res := range results {
		if !res.OK {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, dto.UpstreamsHealthResponse{
		Status:   status,
		Service:  serviceName,
		Upstream: results,
	})
}
