package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticRoute(name string) RouteFunc {
	return func(r *http.Request) string { return name }
}

// TestNewMetrics проверяет создание системы метрик
func TestNewMetrics(t *testing.T) {
	m := NewMetrics("todo_api")

	require.NotNil(t, m)
	assert.NotNil(t, m.RequestCount)
	assert.NotNil(t, m.RequestDuration)
	assert.NotNil(t, m.ErrorsCount)
	assert.NotNil(t, m.Tracer)

	// Независимые реестры позволяют создавать несколько экземпляров
	assert.NotPanics(t, func() { NewMetrics("todo_api") })
}

// TestGetHandler проверяет обработчик метрик
func TestGetHandler(t *testing.T) {
	m := NewMetrics("todo_api")
	m.RequestCount.WithLabelValues("GET", "GET /health", "200").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "todo_api_http_requests_total"))
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

// TestMiddleware проверяет сбор метрик по статусам
func TestMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		route     string
		errorType string
	}{
		{name: "success", status: http.StatusOK, route: "GET /health"},
		{name: "not found", status: http.StatusNotFound, route: "unmatched", errorType: "client_error"},
		{name: "server error", status: http.StatusInternalServerError, route: "GET /{$}", errorType: "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics("todo_api")
			handler := m.Middleware(staticRoute(tt.route))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest("GET", "/whatever", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, 1.0, testutil.ToFloat64(
				m.RequestCount.WithLabelValues("GET", tt.route, strconv.Itoa(tt.status))))
			if tt.errorType != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsCount.WithLabelValues("GET", tt.route, tt.errorType)))
			}
			assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
		})
	}
}

// TestMiddleware_ImplicitStatus проверяет статус 200 без явного WriteHeader
func TestMiddleware_ImplicitStatus(t *testing.T) {
	m := NewMetrics("todo_api")
	handler := m.Middleware(staticRoute("GET /health"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "GET /health", "200")))
}

// TestInitializeOpenTelemetry проверяет создание провайдера трассировки
func TestInitializeOpenTelemetry(t *testing.T) {
	tp, err := InitializeOpenTelemetry("todo-api", "0.1.0")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, ShutdownTracing(context.Background(), tp))
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
