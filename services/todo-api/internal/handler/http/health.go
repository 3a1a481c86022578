package http

import (
	"net/http"

	"SimpleTodoAPI/pkg/health"
	"SimpleTodoAPI/pkg/logger"
)

// healthHandlerImpl реализует интерфейс HealthHandler
type healthHandlerImpl struct {
	checker health.HealthChecker
	log     logger.Logger
}

// NewHealthHandler создает новый экземпляр HealthHandler
func NewHealthHandler(checker health.HealthChecker, log logger.Logger) HealthHandler {
	return &healthHandlerImpl{
		checker: checker,
		log:     log,
	}
}

// HealthCheck обрабатывает health check запросы
func (h *healthHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Check(r.Context())

	h.log.Debug("Health check completed",
		logger.String("status", status.Status),
		logger.CtxField(r.Context()))

	if err := writeJSON(w, http.StatusOK, status); err != nil {
		h.log.Error("Failed to encode health check response", logger.Error(err))
	}
}
