// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

const insertInstanceQuery = `INSERT INTO recurring_event_instances (` + instanceColumns + `)
	VALUES (:id, :base_recurring_event_id, :recurrence_rule_id, :original_series_id,
		:organization_id, :original_instance_start_time, :actual_start_time, :actual_end_time,
		:sequence_number, :is_cancelled, :has_exceptions, :version, :generated_at, :last_updated_at)`

const maxSequenceQuery = `SELECT COALESCE(MAX(sequence_number), 0)
	FROM recurring_event_instances WHERE original_series_id = ?`

// updateExceptionQuery only touches rows that are still uncancelled and at the
// version the caller read.
const updateExceptionQuery = `UPDATE recurring_event_instances
	SET actual_start_time = ?, actual_end_time = ?, is_cancelled = ?, has_exceptions = ?,
		version = ?, last_updated_at = ?
	WHERE id = ? AND is_cancelled = 0 AND version = ?`

// SQLRecurringEventInstanceRepository stores materialized instances.
type SQLRecurringEventInstanceRepository struct {
	*SQLBaseRepository
}

// NewSQLRecurringEventInstanceRepository creates a new SQL instance repository.
func NewSQLRecurringEventInstanceRepository(db *sqlx.DB) *SQLRecurringEventInstanceRepository {
	return &SQLRecurringEventInstanceRepository{
		SQLBaseRepository: NewSQLBaseRepository(db, TableRecurringEventInstances, "instance"),
	}
}

// GetInstance reads an instance by id, cancelled or not.
func (r *SQLRecurringEventInstanceRepository) GetInstance(ctx context.Context, instanceID string) (*models.RecurringEventInstance, error) {
	ctx, span := r.startSpan(ctx, "select", attribute.String("db.sql.id", instanceID))
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	instance := &models.RecurringEventInstance{}
	err := r.db.GetContext(ctx, instance,
		`SELECT `+instanceColumns+` FROM recurring_event_instances WHERE id = ?`, instanceID)
	if err != nil {
		if isNoRows(err) {
			return nil, r.notFound(span, instanceID, err)
		}
		return nil, r.internal(ctx, span, "getting", err, "instance_id", instanceID)
	}

	span.SetStatus(codes.Ok, "")
	return instance, nil
}

// GetInstancesByIDs reads a batch of instances ordered by original start time.
func (r *SQLRecurringEventInstanceRepository) GetInstancesByIDs(ctx context.Context, instanceIDs []string) ([]*models.RecurringEventInstance, error) {
	ctx, span := r.startSpan(ctx, "select", attribute.Int("db.sql.ids_count", len(instanceIDs)))
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	if len(instanceIDs) == 0 {
		span.SetStatus(codes.Ok, "")
		return []*models.RecurringEventInstance{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+instanceColumns+` FROM recurring_event_instances WHERE id IN (?)
		ORDER BY original_instance_start_time, id`, instanceIDs)
	if err != nil {
		return nil, r.internal(ctx, span, "building batch query for", err)
	}

	instances := []*models.RecurringEventInstance{}
	if err := r.db.SelectContext(ctx, &instances, r.db.Rebind(query), args...); err != nil {
		return nil, r.internal(ctx, span, "listing", err)
	}

	span.SetAttributes(attribute.Int("db.sql.rows", len(instances)))
	span.SetStatus(codes.Ok, "")
	return instances, nil
}

// ListInstancesInRange lists an organization's instances whose actual start
// falls inside [StartDate, EndDate].
func (r *SQLRecurringEventInstanceRepository) ListInstancesInRange(ctx context.Context, filter models.InstanceFilter) ([]*models.RecurringEventInstance, error) {
	ctx, span := r.startSpan(ctx, "select",
		attribute.String("recurring_event.organization_id", filter.OrganizationID),
		attribute.Bool("recurring_event.include_cancelled", filter.IncludeCancelled),
		attribute.Int("recurring_event.limit", filter.Limit),
	)
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + instanceColumns + ` FROM recurring_event_instances
		WHERE organization_id = ? AND actual_start_time >= ? AND actual_start_time <= ?`)
	args := []any{filter.OrganizationID, utcSecond(filter.StartDate), utcSecond(filter.EndDate)}

	if !filter.IncludeCancelled {
		sb.WriteString(` AND is_cancelled = 0`)
	}
	if len(filter.ExcludeInstanceIDs) > 0 {
		sb.WriteString(` AND id NOT IN (?)`)
		args = append(args, filter.ExcludeInstanceIDs)
	}
	sb.WriteString(` ORDER BY original_instance_start_time, id`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	query, args, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return nil, r.internal(ctx, span, "building range query for", err)
	}

	instances := []*models.RecurringEventInstance{}
	if err := r.db.SelectContext(ctx, &instances, r.db.Rebind(query), args...); err != nil {
		return nil, r.internal(ctx, span, "listing", err, "organization_id", filter.OrganizationID)
	}

	span.SetAttributes(attribute.Int("db.sql.rows", len(instances)))
	span.SetStatus(codes.Ok, "")
	return instances, nil
}

// MaxSequenceNumber returns the highest sequence number used by a series.
func (r *SQLRecurringEventInstanceRepository) MaxSequenceNumber(ctx context.Context, originalSeriesID string) (int, error) {
	ctx, span := r.startSpan(ctx, "max_sequence", attribute.String("recurring_event.series_id", originalSeriesID))
	defer span.End()

	if r.db == nil {
		return 0, r.unavailable(span)
	}

	var maxSequence int
	if err := r.db.GetContext(ctx, &maxSequence, maxSequenceQuery, originalSeriesID); err != nil {
		return 0, r.internal(ctx, span, "reading max sequence of", err, "series_id", originalSeriesID)
	}

	span.SetStatus(codes.Ok, "")
	return maxSequence, nil
}

// CommitMaterialization inserts a contiguous batch of instances and advances
// the rule horizon to the last of them. The whole batch is rolled back when
// the horizon or the series sequence moved since they were read.
func (r *SQLRecurringEventInstanceRepository) CommitMaterialization(ctx context.Context, ruleID string, expected *time.Time, instances []*models.RecurringEventInstance) error {
	ctx, span := r.startSpan(ctx, "commit_materialization",
		attribute.String("recurring_event.rule_id", ruleID),
		attribute.Int("recurring_event.instances_count", len(instances)),
	)
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	if len(instances) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	first := instances[0]
	last := instances[len(instances)-1]
	now := utcSecond(time.Now())

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return r.beginError(ctx, span, err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxSequence int
	if err := tx.GetContext(ctx, &maxSequence, maxSequenceQuery, first.OriginalSeriesID); err != nil {
		return r.internal(ctx, span, "reading max sequence of", err, "series_id", first.OriginalSeriesID)
	}
	if maxSequence != first.SequenceNumber-1 {
		return r.retryableConflict(span,
			fmt.Sprintf("series '%s' is at sequence %d, batch starts at %d",
				first.OriginalSeriesID, maxSequence, first.SequenceNumber),
			domain.ErrSequenceOutOfStep)
	}

	res, err := tx.ExecContext(ctx, advanceHorizonQuery,
		utcSecond(last.OriginalInstanceStartTime), now, ruleID, utcSecondPtr(expected))
	if err != nil {
		if isBusy(err) {
			return r.retryableConflict(span, "rule is being updated concurrently", domain.ErrHorizonMoved, err)
		}
		return r.internal(ctx, span, "advancing horizon for", err, "rule_id", ruleID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return r.internal(ctx, span, "advancing horizon for", err, "rule_id", ruleID)
	}
	if affected == 0 {
		return r.horizonMissed(ctx, span, tx, ruleID)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertInstanceQuery)
	if err != nil {
		return r.internal(ctx, span, "preparing insert of", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, instance := range instances {
		normalizeInstance(instance)
		if _, err := stmt.ExecContext(ctx, instance); err != nil {
			if isUniqueViolation(err) {
				return r.retryableConflict(span,
					fmt.Sprintf("instance %d of series '%s' already exists",
						instance.SequenceNumber, instance.OriginalSeriesID),
					domain.ErrUniqueViolation, err)
			}
			if isBusy(err) {
				return r.retryableConflict(span, "instances are being generated concurrently", err)
			}
			return r.internal(ctx, span, "inserting", err, "instance_id", instance.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.commitError(ctx, span, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateInstanceException persists the exception fields of an instance.
func (r *SQLRecurringEventInstanceRepository) UpdateInstanceException(ctx context.Context, instance *models.RecurringEventInstance, expectedVersion int) error {
	ctx, span := r.startSpan(ctx, "update",
		attribute.String("db.sql.id", instance.ID),
		attribute.Int("recurring_event.expected_version", expectedVersion),
	)
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	normalizeInstance(instance)
	res, err := r.db.ExecContext(ctx, updateExceptionQuery,
		instance.ActualStartTime, instance.ActualEndTime, instance.IsCancelled, instance.HasExceptions,
		instance.Version, instance.LastUpdatedAt, instance.ID, expectedVersion)
	if err != nil {
		if isBusy(err) {
			return r.retryableConflict(span, "instance is being updated concurrently", err)
		}
		return r.internal(ctx, span, "updating", err, "instance_id", instance.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return r.internal(ctx, span, "updating", err, "instance_id", instance.ID)
	}
	if affected > 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	var current models.RecurringEventInstance
	err = r.db.GetContext(ctx, &current,
		`SELECT `+instanceColumns+` FROM recurring_event_instances WHERE id = ?`, instance.ID)
	switch {
	case isNoRows(err):
		return r.notFound(span, instance.ID, err)
	case err != nil:
		return r.internal(ctx, span, "re-reading", err, "instance_id", instance.ID)
	case current.IsCancelled:
		return recordSpanError(span,
			domain.NewConflictError(fmt.Sprintf("instance '%s' is already cancelled", instance.ID),
				domain.ErrInstanceCancelled).WithArgument("instance_id"),
			"conflict")
	}
	return r.retryableConflict(span,
		fmt.Sprintf("instance '%s' has been modified", instance.ID))
}

func normalizeInstance(instance *models.RecurringEventInstance) {
	instance.OriginalInstanceStartTime = utcSecond(instance.OriginalInstanceStartTime)
	instance.ActualStartTime = utcSecond(instance.ActualStartTime)
	instance.ActualEndTime = utcSecond(instance.ActualEndTime)
	instance.GeneratedAt = utcSecond(instance.GeneratedAt)
	instance.LastUpdatedAt = utcSecond(instance.LastUpdatedAt)
}
