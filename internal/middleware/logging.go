package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpost/inkpost/internal/metrics"
)

const userIDSinkKey contextKey = "user_id_sink"

// Logger emits one "http request" record per request and records its duration.
// Request headers are never logged.
func Logger(logger *slog.Logger, recorder metrics.Recorder) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			// Identity runs later in the chain; it reports the caller back through this sink.
			var userID string
			ctx := context.WithValue(r.Context(), userIDSinkKey, &userID)

			next.ServeHTTP(ww, r.WithContext(ctx))

			duration := time.Since(start)
			recorder.ObserveRequestDuration(duration)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}

// reportUserID hands the resolved caller to an enclosing Logger.
func reportUserID(ctx context.Context, userID string) {
	if sink, ok := ctx.Value(userIDSinkKey).(*string); ok {
		*sink = userID
	}
}
