package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	dbPinger DBPinger
	version  string
	backend  string
}

// NewHealthHandler creates a new HealthHandler. pinger may be nil when the service
// runs without a database.
func NewHealthHandler(pinger DBPinger, version, backend string) *HealthHandler {
	return &HealthHandler{
		dbPinger: pinger,
		version:  version,
		backend:  backend,
	}
}

type databaseStatus struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Backend  string         `json:"backend"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"
	db := databaseStatus{}

	if h.dbPinger != nil {
		db.Configured = true
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.dbPinger.Ping(ctx)
		cancel()
		if err != nil {
			slog.Warn("database ping failed", "error", err)
			status = "degraded"
		} else {
			db.Connected = true
		}
	}

	response.Success(w, http.StatusOK, healthData{
		Status:   status,
		Version:  h.version,
		Backend:  h.backend,
		Database: db,
	}, requestID)
}
