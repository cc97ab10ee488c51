package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/graylogic-ha/internal/device"
)

// healthCheckTimeout bounds each dependency probe in GET /health.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	DeviceID string            `json:"device_id"`
	RunState string            `json:"run_state"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// EntityListResponse is the body of GET /entities.
type EntityListResponse struct {
	DeviceID string                  `json:"device_id"`
	RunState string                  `json:"run_state"`
	Count    int                     `json:"count"`
	Entities []device.EntitySnapshot `json:"entities"`
}

// HistoryResponse is the body of GET /entities/{id}/history.
type HistoryResponse struct {
	EntityID string                `json:"entity_id"`
	Count    int                   `json:"count"`
	Entries  []device.HistoryEntry `json:"entries"`
}

// handleHealth reports liveness. The server answers 200 whatever the run
// state; a failing dependency check turns the answer into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		DeviceID: s.device.Config().DeviceID,
		RunState: s.device.State().String(),
	}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleListEntities returns every entity in creation order.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.device.Snapshot()
	writeJSON(w, http.StatusOK, EntityListResponse{
		DeviceID: s.device.Config().DeviceID,
		RunState: s.device.State().String(),
		Count:    len(entities),
		Entities: entities,
	})
}

// handleGetEntity returns one entity by ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, e := range s.device.Snapshot() {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeNotFound(w, r, "entity not found")
}

// handleEntityHistory returns stored states for an entity, newest first.
// The optional limit query parameter is clamped by the history store.
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	found := false
	for _, e := range s.device.Snapshot() {
		if e.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeNotFound(w, r, "entity not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.History(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading state history", "entity_id", id, "error", err)
		writeInternalError(w, r, "failed to read state history")
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		EntityID: id,
		Count:    len(entries),
		Entries:  entries,
	})
}
