package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports dependency reachability. Redis is optional: a nil
// client reports "disabled" rather than failing the check.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	healthy := true
	if err := h.DB.PingContext(ctx); err != nil {
		dbStatus = "unreachable"
		healthy = false
	}

	redisStatus := "disabled"
	if h.Redis != nil {
		redisStatus = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			// Degraded, not down: rate limiting falls back in-process.
			redisStatus = "unreachable"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{
		"success": healthy,
		"data": echo.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"time":     time.Now().UTC().Format(time.RFC3339),
		},
	})
}
