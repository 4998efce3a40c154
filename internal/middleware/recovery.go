package middleware

import (
	"net/http"
	"runtime/debug"

	"PoscoMonitorAPI/internal/logger"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("PANIC on %s %s: %v", r.Method, r.URL.Path, err)
					log.Error("Stack trace:\n%s", debug.Stack())

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"detail": "Internal server error"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
