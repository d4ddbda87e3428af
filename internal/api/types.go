package api

import (
	"github.com/silkedit/silkedit-helper/internal/events"
	"github.com/silkedit/silkedit-helper/internal/fiber"
	"github.com/silkedit/silkedit-helper/internal/gateway"
	"github.com/silkedit/silkedit-helper/internal/packages"
)

// HealthzResponse is the body of GET /healthz.
type HealthzResponse struct {
	Status         string        `json:"status"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	LiveFibers     int           `json:"live_fibers"`
	PackagesLoaded int           `json:"packages_loaded"`
	CachedObjects  int           `json:"cached_objects"`
	Calls          gateway.Stats `json:"calls"`
}

// FibersResponse is the body of GET /fibers.
type FibersResponse struct {
	Fibers []fiber.Info `json:"fibers"`
}

// PackagesResponse is the body of GET /packages.
type PackagesResponse struct {
	Packages []packages.Package `json:"packages"`
}

// EventsResponse is the body of GET /events.
type EventsResponse struct {
	Events []events.Activity `json:"events"`
}

// ErrorResponse is returned on client errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
