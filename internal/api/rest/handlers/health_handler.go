package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck проверка зависимости (например, ping пула Postgres)
type HealthCheck func(ctx context.Context) error

// HealthHandler обработчик для проверки работоспособности сервиса
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health отвечает 200, если все проверки прошли, иначе 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "OK"
	}

	body := gin.H{
		"status": "OK",
		"time":   time.Now().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "DEGRADED"
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	c.JSON(status, body)
}
