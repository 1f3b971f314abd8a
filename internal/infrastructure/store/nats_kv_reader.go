// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/store"

// INatsKeyValue is the part of jetstream.KeyValue the directory reads.
type INatsKeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// kvReader decodes JSON records of one kind from a KV bucket.
type kvReader[T any] struct {
	bucket INatsKeyValue
	kind   string
}

func newKVReader[T any](bucket INatsKeyValue, kind string) *kvReader[T] {
	return &kvReader[T]{bucket: bucket, kind: kind}
}

func (r *kvReader[T]) ready() bool {
	return r.bucket != nil
}

// get returns the record stored under key. A missing key is a NotFoundError;
// an unreachable bucket is an UnavailableError.
func (r *kvReader[T]) get(ctx context.Context, key string) (*T, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nats.kv.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", "get"),
			attribute.String("db.nats.key", key),
			attribute.String("db.nats.entity", r.kind),
		),
	)
	defer span.End()

	record, err := r.read(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return record, nil
}

func (r *kvReader[T]) read(ctx context.Context, key string) (*T, error) {
	if !r.ready() {
		return nil, domain.NewUnavailableError(fmt.Sprintf("%s directory is not available", r.kind))
	}

	entry, err := r.bucket.Get(ctx, key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return nil, domain.NewNotFoundError(fmt.Sprintf("%s '%s' not found", r.kind, key), err)
	case err != nil:
		slog.ErrorContext(ctx, "error reading directory bucket", logging.ErrKey, err, "kind", r.kind, "key", key)
		return nil, domain.NewUnavailableError(fmt.Sprintf("failed to read %s from directory", r.kind), err)
	}

	var record T
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		slog.ErrorContext(ctx, "malformed directory record", logging.ErrKey, err,
			"kind", r.kind, "key", key, "revision", entry.Revision())
		return nil, domain.NewInternalError(fmt.Sprintf("malformed %s record", r.kind), err)
	}
	return &record, nil
}
