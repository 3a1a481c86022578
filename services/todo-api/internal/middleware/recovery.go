package middleware

import (
	"net/http"
	"runtime/debug"

	pkgErrors "SimpleTodoAPI/pkg/errors"
	"SimpleTodoAPI/pkg/logger"
)

// RecoveryMiddleware обрабатывает паники в обработчиках HTTP
func RecoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				// net/http использует эту панику для обрыва соединения
				if err == http.ErrAbortHandler {
					panic(err)
				}

				log.Error("Panic recovered in HTTP handler",
					logger.Any("panic", err),
					logger.String("stack_trace", string(debug.Stack())),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.CtxField(r.Context()))

				pkgErrors.WriteJSON(w, pkgErrors.New(pkgErrors.ErrInternal, "Internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
