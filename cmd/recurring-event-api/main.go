// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the recurring event service that materializes recurring
// event instances and answers NATS requests about them.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/utils"
)

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	var cleanup startupCleanup

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry SDK")
		return
	}
	cleanup.add(otelShutdown)

	db, repos, err := setupDatabase(ctx, env)
	if err != nil {
		cleanup.abort(context.Background(), "error setting up database", err)
		return
	}
	cleanup.add(func(context.Context) error { return db.Close() })

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		cleanup.abort(context.Background(), "error setting up NATS", err)
		return
	}
	cleanup.add(func(context.Context) error {
		// Cancelled first so the closed handler treats this as a shutdown.
		cancel()
		natsConn.Close()
		return nil
	})

	repos.Directory, err = getDirectoryStores(ctx, natsConn)
	if err != nil {
		cleanup.abort(context.Background(), "error getting key-value stores", err)
		return
	}

	// Initialize services
	serviceConfig := service.ServiceConfig{
		MaterializeMaxInstances: env.MaterializeMaxInstances,
		MaterializeWorkers:      env.MaterializeWorkers,
		InstanceListLimit:       constants.DefaultInstanceListLimit,
	}
	messageBuilder := messaging.NewMessageBuilder(natsConn)
	occurrenceService := service.NewOccurrenceService()
	ruleService := service.NewRecurrenceRuleService(
		repos.Template,
		repos.Rule,
		occurrenceService,
	)
	materializerService := service.NewMaterializerService(
		repos.Template,
		repos.Rule,
		repos.Instance,
		occurrenceService,
		messageBuilder,
		serviceConfig,
	)
	exceptionService := service.NewExceptionService(
		repos.Instance,
		repos.Directory,
		messageBuilder,
	)
	queryService := service.NewInstanceQueryService(
		repos.Instance,
		repos.Template,
		serviceConfig,
	)

	// Initialize handlers
	recurringEventHandler := handlers.NewRecurringEventHandler(
		ruleService,
		materializerService,
		exceptionService,
		queryService,
		env.MaterializeMaxAttempts,
	)

	healthHandler := newHealthHandler(map[string]readinessCheck{
		"nats": func(context.Context) bool { return natsConn.IsConnected() },
		"database": func(ctx context.Context) bool {
			return db.PingContext(ctx) == nil
		},
		"directory": func(context.Context) bool { return repos.Directory.IsReady() },
		"handlers":  func(context.Context) bool { return recurringEventHandler.HandlerReady() },
	})
	httpServer := setupHTTPServer(flags, healthHandler, &gracefulCloseWG)
	cleanup.add(httpServer.Shutdown)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, recurringEventHandler, natsConn)
	if err != nil {
		cleanup.abort(context.Background(), "error creating NATS subscriptions", err)
		return
	}

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, db, otelShutdown, &gracefulCloseWG, cancel)
}

// gracefulShutdown stops the health server, drains NATS so in-flight requests
// are answered, and then releases the database and telemetry exporters.
func gracefulShutdown(
	httpServer *http.Server,
	natsConn *nats.Conn,
	db *sqlx.DB,
	otelShutdown func(context.Context) error,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
) {
	slog.With("addr", httpServer.Addr).Info("beginning graceful shutdown")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	// Cancelling the background context tells the NATS closed handler this is
	// a graceful shutdown.
	cancel()

	go func() {
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	if !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		}
	}

	gracefulCloseWG.Wait()

	if err := db.Close(); err != nil {
		slog.With(logging.ErrKey, err).Error("error closing database")
	}
	if err := otelShutdown(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry SDK")
	}

	slog.Info("graceful shutdown complete")
}
