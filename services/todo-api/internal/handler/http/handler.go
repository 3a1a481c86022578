package http

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"SimpleTodoAPI/pkg/config"
	"SimpleTodoAPI/pkg/logger"
)

const (
	// APIName название сервиса, отдаваемое корневым эндпоинтом
	APIName = "Simple Todo API"
	// APIVersion версия API
	APIVersion = "0.1.0"

	// RouteUnmatched метка маршрута для путей без обработчика
	RouteUnmatched = "unmatched"
)

// RootResponse тело ответа корневого эндпоинта
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// Handler структура для управления HTTP обработчиками
type Handler struct {
	mux           *http.ServeMux
	healthHandler HealthHandler
	log           logger.Logger
	strict        bool
	caseSensitive bool
}

// HealthHandler интерфейс для health check обработчика
type HealthHandler interface {
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// NewHandler создает новый экземпляр Handler
func NewHandler(routerConfig config.RouterConfig, healthHandler HealthHandler, log logger.Logger) *Handler {
	h := &Handler{
		mux:           http.NewServeMux(),
		healthHandler: healthHandler,
		log:           log,
		strict:        routerConfig.Strict,
		caseSensitive: routerConfig.CaseSensitive,
	}

	h.setupRoutes()

	return h
}

// ServeHTTP реализует интерфейс http.Handler.
// Неканонические пути получают 404 вместо редиректа ServeMux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r, ok := h.resolve(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// setupRoutes настраивает маршруты для приложения
func (h *Handler) setupRoutes() {
	h.Handle("/health", http.HandlerFunc(h.healthHandler.HealthCheck))
	h.Handle("/{$}", http.HandlerFunc(h.handleRoot))
}

// Handle регистрирует обработчик GET (и HEAD) запросов на точный путь.
// Остальные методы получают 404, как и неизвестные пути.
func (h *Handler) Handle(route string, handler http.Handler) {
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	if !h.caseSensitive {
		route = strings.ToLower(route)
	}
	h.mux.Handle(route, getOnly(handler))
}

// RouteOf возвращает маршрут, который обработает запрос, или RouteUnmatched
func (h *Handler) RouteOf(r *http.Request) string {
	r, ok := h.resolve(r)
	if !ok {
		return RouteUnmatched
	}
	_, pattern := h.mux.Handler(r)
	switch pattern {
	case "":
		return RouteUnmatched
	case "/{$}":
		return "/"
	default:
		return pattern
	}
}

// resolve приводит путь к виду, в котором зарегистрированы маршруты.
// false означает путь, который ServeMux очистил бы редиректом.
func (h *Handler) resolve(r *http.Request) (*http.Request, bool) {
	p := r.URL.Path
	if !h.strict && len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" || path.Clean(p) != p {
		return r, false
	}
	if !h.caseSensitive {
		p = strings.ToLower(p)
	}
	if p == r.URL.Path {
		return r, true
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = p
	r2.URL.RawPath = ""
	return r2, true
}

// handleRoot отдает описание API
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Message: APIName, Version: APIVersion})
}

// getOnly пропускает GET и HEAD, остальные методы получают 404
func getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON записывает JSON ответ с заданным статусом
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}
