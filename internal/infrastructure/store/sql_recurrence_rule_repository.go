// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

const insertRuleQuery = `INSERT INTO recurrence_rules (` + ruleColumns + `)
	VALUES (:id, :base_recurring_event_id, :original_series_id, :frequency, :interval, :count,
		:recurrence_start_date, :recurrence_end_date, :recurrence_rule_string, :latest_instance_date,
		:organization_id, :creator_id, :created_at, :updated_at)`

// advanceHorizonQuery is a compare-and-set on latest_instance_date. IS matches
// NULL against NULL.
const advanceHorizonQuery = `UPDATE recurrence_rules
	SET latest_instance_date = ?, updated_at = ?
	WHERE id = ? AND latest_instance_date IS ?`

// SQLRecurrenceRuleRepository stores recurrence rules.
type SQLRecurrenceRuleRepository struct {
	*SQLBaseRepository
}

// NewSQLRecurrenceRuleRepository creates a new SQL recurrence rule repository.
func NewSQLRecurrenceRuleRepository(db *sqlx.DB) *SQLRecurrenceRuleRepository {
	return &SQLRecurrenceRuleRepository{
		SQLBaseRepository: NewSQLBaseRepository(db, TableRecurrenceRules, "rule"),
	}
}

// CreateRule inserts a rule for an existing template.
func (r *SQLRecurrenceRuleRepository) CreateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	ctx, span := r.startSpan(ctx, "insert",
		attribute.String("db.sql.id", rule.ID),
		attribute.String("recurring_event.template_id", rule.BaseRecurringEventID),
	)
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	normalizeRule(rule)
	if _, err := r.db.NamedExecContext(ctx, insertRuleQuery, rule); err != nil {
		return r.mapInsertError(ctx, span, rule, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CreateSeries inserts a template and its rule in one transaction.
func (r *SQLRecurrenceRuleRepository) CreateSeries(ctx context.Context, template *models.RecurringEventTemplate, rule *models.RecurrenceRule) error {
	ctx, span := r.startSpan(ctx, "create_series",
		attribute.String("db.sql.id", rule.ID),
		attribute.String("recurring_event.template_id", template.ID),
	)
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return r.beginError(ctx, span, err)
	}
	defer func() { _ = tx.Rollback() }()

	normalizeTemplate(template)
	if _, err := tx.NamedExecContext(ctx, insertTemplateQuery, template); err != nil {
		if isUniqueViolation(err) {
			return recordSpanError(span,
				domain.NewConflictError(fmt.Sprintf("template with id '%s' already exists", template.ID), err),
				"conflict")
		}
		return r.internal(ctx, span, "creating template for", err, "template_id", template.ID)
	}

	normalizeRule(rule)
	if _, err := tx.NamedExecContext(ctx, insertRuleQuery, rule); err != nil {
		return r.mapInsertError(ctx, span, rule, err)
	}

	if err := tx.Commit(); err != nil {
		return r.commitError(ctx, span, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetRule reads a rule by id.
func (r *SQLRecurrenceRuleRepository) GetRule(ctx context.Context, ruleID string) (*models.RecurrenceRule, error) {
	return r.getOne(ctx, "id", ruleID)
}

// GetRuleByTemplate reads the rule attached to a template.
func (r *SQLRecurrenceRuleRepository) GetRuleByTemplate(ctx context.Context, templateID string) (*models.RecurrenceRule, error) {
	return r.getOne(ctx, "base_recurring_event_id", templateID)
}

func (r *SQLRecurrenceRuleRepository) getOne(ctx context.Context, column, value string) (*models.RecurrenceRule, error) {
	ctx, span := r.startSpan(ctx, "select", attribute.String("db.sql."+column, value))
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	rule := &models.RecurrenceRule{}
	// column is one of two fixed names, never caller input.
	err := r.db.GetContext(ctx, rule,
		`SELECT `+ruleColumns+` FROM recurrence_rules WHERE `+column+` = ?`, value)
	if err != nil {
		if isNoRows(err) {
			return nil, recordSpanError(span,
				domain.NewNotFoundError(fmt.Sprintf("rule with %s '%s' not found", column, value), err),
				"not found")
		}
		return nil, r.internal(ctx, span, "getting", err, column, value)
	}

	span.SetStatus(codes.Ok, "")
	return rule, nil
}

// ListRulesByOrganization returns every rule of an organization.
func (r *SQLRecurrenceRuleRepository) ListRulesByOrganization(ctx context.Context, organizationID string) ([]*models.RecurrenceRule, error) {
	ctx, span := r.startSpan(ctx, "select", attribute.String("recurring_event.organization_id", organizationID))
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	var rules []*models.RecurrenceRule
	err := r.db.SelectContext(ctx, &rules,
		`SELECT `+ruleColumns+` FROM recurrence_rules WHERE organization_id = ? ORDER BY created_at, id`,
		organizationID)
	if err != nil {
		return nil, r.internal(ctx, span, "listing", err, "organization_id", organizationID)
	}

	span.SetAttributes(attribute.Int("db.sql.rows", len(rules)))
	span.SetStatus(codes.Ok, "")
	return rules, nil
}

// AdvanceHorizon moves latest_instance_date from expected to latest.
func (r *SQLRecurrenceRuleRepository) AdvanceHorizon(ctx context.Context, ruleID string, expected *time.Time, latest time.Time) error {
	ctx, span := r.startSpan(ctx, "update", attribute.String("db.sql.id", ruleID))
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	res, err := r.db.ExecContext(ctx, advanceHorizonQuery,
		utcSecond(latest), utcSecond(time.Now()), ruleID, utcSecondPtr(expected))
	if err != nil {
		if isBusy(err) {
			return r.retryableConflict(span, "rule is being updated concurrently", domain.ErrHorizonMoved, err)
		}
		return r.internal(ctx, span, "advancing horizon of", err, "rule_id", ruleID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return r.internal(ctx, span, "advancing horizon of", err, "rule_id", ruleID)
	}
	if affected == 0 {
		return r.horizonMissed(ctx, span, r.db, ruleID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// horizonMissed tells a missing rule apart from a horizon that moved.
func (r *SQLBaseRepository) horizonMissed(ctx context.Context, span trace.Span, q sqlx.QueryerContext, ruleID string) error {
	var exists int
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT COUNT(1) FROM recurrence_rules WHERE id = ?`, ruleID); err != nil {
		return r.internal(ctx, span, "checking", err, "rule_id", ruleID)
	}
	if exists == 0 {
		return recordSpanError(span,
			domain.NewNotFoundError(fmt.Sprintf("rule with id '%s' not found", ruleID)),
			"not found")
	}
	return r.retryableConflict(span,
		fmt.Sprintf("latest instance date of rule '%s' has changed", ruleID), domain.ErrHorizonMoved)
}

func (r *SQLRecurrenceRuleRepository) mapInsertError(ctx context.Context, span trace.Span, rule *models.RecurrenceRule, err error) error {
	switch {
	case isUniqueViolation(err):
		return recordSpanError(span,
			domain.NewConflictError(
				fmt.Sprintf("template '%s' already has a recurrence rule", rule.BaseRecurringEventID),
				domain.ErrRuleAlreadyExists, err).WithArgument("base_recurring_event_id"),
			"conflict")
	case isForeignKeyViolation(err):
		return recordSpanError(span,
			domain.NewNotFoundError(
				fmt.Sprintf("template with id '%s' not found", rule.BaseRecurringEventID), err),
			"not found")
	}
	return r.internal(ctx, span, "creating", err, "rule_id", rule.ID)
}

func normalizeRule(rule *models.RecurrenceRule) {
	rule.RecurrenceStartDate = utcSecond(rule.RecurrenceStartDate)
	rule.RecurrenceEndDate = utcSecondPtr(rule.RecurrenceEndDate)
	rule.LatestInstanceDate = utcSecondPtr(rule.LatestInstanceDate)
	rule.CreatedAt = utcSecondPtr(rule.CreatedAt)
	rule.UpdatedAt = utcSecondPtr(rule.UpdatedAt)
}
