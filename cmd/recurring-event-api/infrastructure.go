// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

const gracefulShutdownSeconds = 25

// repositories are the stores backing the services.
type repositories struct {
	Template  *store.SQLTemplateRepository
	Rule      *store.SQLRecurrenceRuleRepository
	Instance  *store.SQLRecurringEventInstanceRepository
	Directory *store.NatsDirectoryRepository
}

// setupNATS connects to NATS. The closed handler decrements the wait group on a
// graceful shutdown; a connection lost outside a shutdown stops the service.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-recurring-event-service"),
		nats.DrainTimeout(gracefulShutdownSeconds*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("url", env.NatsURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// The parent context is cancelled: this is a graceful shutdown.
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS max-reconnects exhausted; connection closed", logging.PriorityCritical())
			done <- os.Interrupt
			time.Sleep(5 * time.Second)
			os.Exit(1)
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return natsConn, nil
}

// getDirectoryStores opens the directory key-value buckets.
func getDirectoryStores(ctx context.Context, natsConn *nats.Conn) (*store.NatsDirectoryRepository, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	memberships, err := js.KeyValue(ctx, store.KVStoreNameOrganizationMemberships)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store %q: %w", store.KVStoreNameOrganizationMemberships, err)
	}

	users, err := js.KeyValue(ctx, store.KVStoreNameUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store %q: %w", store.KVStoreNameUsers, err)
	}

	return store.NewNatsDirectoryRepository(memberships, users), nil
}

// setupDatabase opens the SQLite database and builds the SQL repositories.
func setupDatabase(ctx context.Context, env environment) (*sqlx.DB, *repositories, error) {
	db, err := store.OpenSQLite(ctx, env.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	return db, &repositories{
		Template: store.NewSQLTemplateRepository(db),
		Rule:     store.NewSQLRecurrenceRuleRepository(db),
		Instance: store.NewSQLRecurringEventInstanceRepository(db),
	}, nil
}

// createNatsSubscriptions subscribes the handler to its request subjects in
// the service queue group.
func createNatsSubscriptions(ctx context.Context, handler *handlers.RecurringEventHandler, natsConn *nats.Conn) error {
	queue := models.RecurringEventsAPIQueue

	for _, subject := range handler.Subjects() {
		_, err := natsConn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
			natsMsg := messaging.NewNatsMessage(msg)
			handler.HandleMessage(natsMsg.Context(ctx), natsMsg)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		slog.With("subject", subject, "queue", queue).Debug("subscribed to NATS subject")
	}

	return nil
}
