package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"SimpleTodoAPI/pkg/logger"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength ограничивает длину принятого от клиента идентификатора
const maxRequestIDLength = 128

// LoggingMiddleware присваивает запросу идентификатор и логирует его завершение
func LoggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.NewString()
			}

			r = r.WithContext(logger.WithTraceID(r.Context(), requestID))
			w.Header().Set(RequestIDHeader, requestID)

			logFields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.String("remote_addr", r.RemoteAddr),
				logger.String("user_agent", r.UserAgent()),
				logger.String("trace_id", requestID),
			}

			log.Debug("Started request", logFields...)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logFields = append(logFields,
				logger.Int("status_code", wrapped.statusCode),
				logger.Int64("bytes", wrapped.bytes),
				logger.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			)

			switch {
			case wrapped.statusCode >= 500:
				log.Error("Completed request", logFields...)
			case wrapped.statusCode >= 400:
				log.Warn("Completed request", logFields...)
			default:
				log.Info("Completed request", logFields...)
			}
		})
	}
}

// responseWriter обертка для перехвата статуса и размера ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int64
	wroteHeader bool
}

// WriteHeader перехватывает установку статуса
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
