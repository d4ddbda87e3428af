package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/silkedit/silkedit-helper/internal/events"
	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/packages"
	"github.com/silkedit/silkedit-helper/internal/registry"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.deps.Fibers != nil {
		resp.LiveFibers = s.deps.Fibers.Live()
	}
	if s.deps.Packages != nil {
		resp.PackagesLoaded = len(s.deps.Packages.Packages())
	}
	if s.deps.Objects != nil {
		resp.CachedObjects = s.deps.Objects.Len()
	}
	if s.deps.Calls != nil {
		resp.Calls = s.deps.Calls.Stats()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFibers(w http.ResponseWriter, r *http.Request) {
	resp := FibersResponse{Fibers: []fiber.Info{}}
	if s.deps.Fibers != nil {
		resp.Fibers = append(resp.Fibers, s.deps.Fibers.Snapshot()...)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	snap := registry.Snapshot{Commands: []string{}, Conditions: []string{}, EventFilters: map[string]int{}}
	if s.deps.Registry != nil {
		snap = s.deps.Registry.Snapshot()
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	resp := PackagesResponse{Packages: []packages.Package{}}
	if s.deps.Packages != nil {
		resp.Packages = append(resp.Packages, s.deps.Packages.Packages()...)
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleEvents handles GET /events?since=<id>.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	resp := EventsResponse{Events: []events.Activity{}}
	if s.deps.Events != nil {
		resp.Events = append(resp.Events, s.deps.Events.SnapshotSince(since)...)
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
