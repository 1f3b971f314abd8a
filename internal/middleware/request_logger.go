// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

// quietPaths are served without request logs; probes hit them every few seconds.
var quietPaths = map[string]bool{
	constants.LivenessPath:  true,
	constants.ReadinessPath: true,
}

// RequestLoggerMiddleware tags every request with an X-REQUEST-ID, reusing the
// caller's when present, and logs requests outside the probe paths.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(constants.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(constants.RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), constants.RequestIDContextID, requestID)
			for _, attr := range requestAttrs(r, requestID) {
				ctx = logging.AppendCtx(ctx, attr)
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			quiet := quietPaths[r.URL.Path]
			if !quiet {
				slog.InfoContext(ctx, "HTTP request")
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			if !quiet {
				slog.InfoContext(ctx, "HTTP response", "status", rw.statusCode, "duration", time.Since(start).String())
			}
		})
	}
}

func requestAttrs(r *http.Request, requestID string) []slog.Attr {
	return []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("query", r.URL.RawQuery),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}
}

// responseWriter records the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
