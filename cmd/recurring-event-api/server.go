// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

// readinessCheck reports whether a dependency can serve requests.
type readinessCheck func(ctx context.Context) bool

// newHealthHandler serves /livez and /readyz. /readyz fails while any check fails.
func newHealthHandler(checks map[string]readinessCheck) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+constants.LivenessPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	mux.HandleFunc("GET "+constants.ReadinessPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range checks {
			if !check(ctx) {
				slog.WarnContext(ctx, "service not ready", "dependency", name)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(name + " not ready\n"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	var handler http.Handler = mux
	handler = middleware.RequestLoggerMiddleware()(handler)
	return otelhttp.NewHandler(handler, "recurring-event-api")
}

// setupHTTPServer configures and starts the health server
func setupHTTPServer(flags flags, handler http.Handler, gracefulCloseWG *sync.WaitGroup) *http.Server {
	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// ErrServerClosed is returned as soon as Shutdown is called, not when it
		// completes, so the wait group is decremented by gracefulShutdown.
	}()

	return httpServer
}
