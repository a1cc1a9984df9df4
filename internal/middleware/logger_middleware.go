package middleware

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

const userHolderKey contextKey = "userHolder"

// LoggerMiddleware logs one line per request. The authenticated user is
// only known inside the auth middleware, which fills in the holder placed
// on the context here.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := "anonymous"
			r = r.WithContext(context.WithValue(r.Context(), userHolderKey, &userID))

			m := httpsnoop.CaptureMetrics(next, w, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", m.Code),
				zap.Duration("duration", m.Duration),
				zap.Int64("bytes", m.Written),
				zap.String("user_id", userID),
			)
		})
	}
}
