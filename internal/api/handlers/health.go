package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/utils"
)

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     Pinger
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: log,
	}
}

// Healthz handles liveness probe
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readyz reports ready only while the action store answers.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Ctx(ctx).ErrorWithErr(err, "Database ping failed")
		utils.WriteError(w, errors.ServiceUnavailable("Database connection failed"))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "connected",
	})
}
