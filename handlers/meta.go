package handlers

import (
	"log"
	"net/http"

	"trailfetch/internal/store"
	"trailfetch/models"
	"trailfetch/services"
)

// MetaHandler serves the discovery endpoints: which services exist, which
// statuses a process can be in, and whether the system is alive.
type MetaHandler struct {
	store    *store.Store
	registry *services.Registry
}

func NewMetaHandler(st *store.Store, registry *services.Registry) *MetaHandler {
	return &MetaHandler{store: st, registry: registry}
}

// ServiceInfo describes one registered adapter.
type ServiceInfo struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Services handles GET /services.
func (h *MetaHandler) Services(w http.ResponseWriter, r *http.Request) {
	out := make([]ServiceInfo, 0)
	for _, a := range h.registry.All() {
		out = append(out, ServiceInfo{Name: a.Name(), Domain: a.Domain()})
	}
	writeJSON(w, http.StatusOK, out)
}

// Statuses handles GET /all-status.
func (h *MetaHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.AllStatuses)
}

// Health handles GET /health.
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.CountIncomplete(r.Context())
	if err != nil {
		log.Printf("[http] health check failed: %v", err)
		writeJSONError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"pendingProcesses": pending,
	})
}
