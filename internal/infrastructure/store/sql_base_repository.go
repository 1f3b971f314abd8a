// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

// sqliteDriverName is the database/sql driver registered by go-sqlite3.
const sqliteDriverName = "sqlite3"

// OpenSQLite connects to the SQLite database described by dsn and applies the
// schema. The DSN should enable WAL, foreign keys, and immediate transactions.
func OpenSQLite(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database schema: %w", err)
	}

	return db, nil
}

// SQLBaseRepository provides the span and error mapping shared by the SQL repositories.
type SQLBaseRepository struct {
	db         *sqlx.DB
	table      string
	entityName string // Used in error messages (e.g., "rule", "instance")
}

// NewSQLBaseRepository creates a new base repository for one table.
func NewSQLBaseRepository(db *sqlx.DB, table, entityName string) *SQLBaseRepository {
	return &SQLBaseRepository{
		db:         db,
		table:      table,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *SQLBaseRepository) IsReady(ctx context.Context) bool {
	return r.db != nil && r.db.PingContext(ctx) == nil
}

func (r *SQLBaseRepository) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", r.table),
	}
	return otel.Tracer(tracerName).Start(ctx, "sqlite."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(base, attrs...)...),
	)
}

func (r *SQLBaseRepository) unavailable(span trace.Span) error {
	err := domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
	return recordSpanError(span, err, err.Error())
}

// notFound maps sql.ErrNoRows onto a domain not found error.
func (r *SQLBaseRepository) notFound(span trace.Span, id string, err error) error {
	return recordSpanError(span,
		domain.NewNotFoundError(fmt.Sprintf("%s with id '%s' not found", r.entityName, id), err),
		"not found")
}

// internal logs the store failure and hides it behind an internal error.
func (r *SQLBaseRepository) internal(ctx context.Context, span trace.Span, action string, err error, args ...any) error {
	slog.ErrorContext(ctx, fmt.Sprintf("error %s %s in database", action, r.entityName),
		append([]any{logging.ErrKey, err}, args...)...)
	return recordSpanError(span,
		domain.NewInternalError(fmt.Sprintf("failed %s %s in store", action, r.entityName), err),
		err.Error())
}

// retryableConflict reports a lost race that the caller may retry after re-reading.
func (r *SQLBaseRepository) retryableConflict(span trace.Span, message string, err ...error) error {
	return recordSpanError(span, domain.NewRetryableConflictError(message, err...), "conflict")
}

func (r *SQLBaseRepository) beginError(ctx context.Context, span trace.Span, err error) error {
	if isBusy(err) {
		return r.retryableConflict(span, fmt.Sprintf("%s is being updated concurrently", r.entityName), err)
	}
	return r.internal(ctx, span, "starting transaction for", err)
}

func (r *SQLBaseRepository) commitError(ctx context.Context, span trace.Span, err error) error {
	if isBusy(err) {
		return r.retryableConflict(span, fmt.Sprintf("%s is being updated concurrently", r.entityName), err)
	}
	return r.internal(ctx, span, "committing", err)
}

func recordSpanError(span trace.Span, err error, status string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// isBusy reports lock contention that outlived the busy timeout.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// utcSecond is the canonical stored form of every timestamp.
func utcSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func utcSecondPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := utcSecond(*t)
	return &v
}
