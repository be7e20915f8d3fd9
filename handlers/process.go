package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"trailfetch/internal/metrics"
	"trailfetch/internal/store"
	"trailfetch/models"
	"trailfetch/services"
)

// jobQueue schedules stored processes for execution.
type jobQueue interface {
	Enqueue(processID string)
}

type ProcessHandler struct {
	store    *store.Store
	registry *services.Registry
	queue    jobQueue
}

func NewProcessHandler(st *store.Store, registry *services.Registry, queue jobQueue) *ProcessHandler {
	return &ProcessHandler{store: st, registry: registry, queue: queue}
}

// CreateProcessRequest is the request body for creating a process by name.
type CreateProcessRequest struct {
	ServiceName     string `json:"serviceName"`
	Name            string `json:"name"`
	Year            int    `json:"year"`
	Lang            string `json:"lang"`
	FullAudioTracks bool   `json:"fullAudioTracks"`
	CallbackURL     string `json:"callbackUrl"`
}

// Create handles POST /process.
func (h *ProcessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Year == 0 {
		writeJSONError(w, "Missing parameters: name and year are required", http.StatusBadRequest)
		return
	}
	if req.Lang == "" {
		req.Lang = "en-US"
	}
	if req.ServiceName == "" {
		req.ServiceName = services.ServiceNameAll
	}

	var names []string
	if req.ServiceName == services.ServiceNameAll {
		names = h.registry.Names()
	} else if _, ok := h.registry.Get(req.ServiceName); ok {
		names = []string{req.ServiceName}
	}
	if len(names) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"message":           "Service not found: " + req.ServiceName,
			"availableServices": h.registry.Names(),
		})
		return
	}

	p := &models.Process{
		Status:          models.StatusPending,
		StatusDetails:   "Process was created and is in queue",
		ServiceName:     req.ServiceName,
		Services:        strings.Join(names, "|"),
		Name:            &req.Name,
		Year:            &req.Year,
		Lang:            req.Lang,
		FullAudioTracks: req.FullAudioTracks,
	}
	if req.CallbackURL != "" {
		p.CallbackURL = &req.CallbackURL
	}

	if err := h.store.CreateProcess(r.Context(), p); err != nil {
		log.Printf("[http] failed to create process: %v", err)
		writeJSONError(w, "Failed to add to queue", http.StatusInternalServerError)
		return
	}

	metrics.ProcessesCreated.Inc()
	h.queue.Enqueue(p.ID)

	writeJSON(w, http.StatusCreated, map[string]string{"processId": p.ID})
}

// CreateByPageRequest is the request body for creating a process from a
// direct trailer page URL.
type CreateByPageRequest struct {
	TrailerPage     string `json:"trailerPage"`
	Lang            string `json:"lang"`
	FullAudioTracks bool   `json:"fullAudioTracks"`
	CallbackURL     string `json:"callbackUrl"`
}

// CreateByPage handles POST /process/by-trailer-page.
func (h *ProcessHandler) CreateByPage(w http.ResponseWriter, r *http.Request) {
	var req CreateByPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.TrailerPage == "" {
		writeJSONError(w, "Missing parameters: trailerPage", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.TrailerPage, "https://") {
		writeJSONError(w, "Invalid parameters: trailerPage", http.StatusBadRequest)
		return
	}
	if req.Lang == "" {
		req.Lang = "en-US"
	}

	adapter, ok := h.registry.ForPage(req.TrailerPage)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"message":          "Can't find the service for the trailer page: " + req.TrailerPage,
			"availableDomains": h.registry.Domains(),
		})
		return
	}

	p := &models.Process{
		Status:          models.StatusPending,
		StatusDetails:   "Process was created and is in queue",
		ServiceName:     adapter.Name(),
		Services:        adapter.Name(),
		Lang:            req.Lang,
		FullAudioTracks: req.FullAudioTracks,
		TrailerPage:     &req.TrailerPage,
	}
	if req.CallbackURL != "" {
		p.CallbackURL = &req.CallbackURL
	}

	if err := h.store.CreateProcess(r.Context(), p); err != nil {
		log.Printf("[http] failed to create process: %v", err)
		writeJSONError(w, "Failed to add to queue", http.StatusInternalServerError)
		return
	}

	metrics.ProcessesCreated.Inc()
	h.queue.Enqueue(p.ID)

	writeJSON(w, http.StatusCreated, map[string]string{"processId": p.ID})
}

// Get handles GET /process/{processId}.
func (h *ProcessHandler) Get(w http.ResponseWriter, r *http.Request) {
	processID := mux.Vars(r)["processId"]

	detail, err := h.store.GetProcessDetail(r.Context(), processID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "Process not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[http] failed to load process %s: %v", processID, err)
		writeJSONError(w, "Failed to load process", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Feed handles GET /trailers/feed.
func (h *ProcessHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	feed, err := h.store.ListFeed(r.Context(), limit, page)
	if err != nil {
		log.Printf("[http] failed to load feed: %v", err)
		writeJSONError(w, "Failed to load feed", http.StatusInternalServerError)
		return
	}
	if feed == nil {
		feed = []*models.ProcessDetail{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": feed, "total": len(feed)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
