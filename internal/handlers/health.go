package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/saluran/fieldreport-server/internal/models"
	"go.uber.org/zap"
)

const version = "1.0.0"

var startTime = time.Now()

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db      Pinger
	redis   Pinger
	storage Pinger
	logger  *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. A nil storage pinger is
// reported as "disabled".
func NewHealthHandler(db, redis, storage Pinger, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, storage: storage, logger: logger}
}

// Check handles GET /api/v1/health (liveness)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: h.ping(ctx, "database", h.db),
		Redis:    h.ping(ctx, "redis", h.redis),
		Storage:  h.ping(ctx, "storage", h.storage),
	}

	code := http.StatusOK
	if status.Database == "disconnected" || status.Redis == "disconnected" || status.Storage == "disconnected" {
		status.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status)
}

func (h *HealthHandler) ping(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		h.logger.Warnw("Readiness check failed", "dependency", name, "error", err)
		return "disconnected"
	}
	return "connected"
}
