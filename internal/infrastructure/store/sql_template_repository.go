// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

const insertTemplateQuery = `INSERT INTO recurring_event_templates (` + templateColumns + `)
	VALUES (:id, :name, :description, :location, :all_day, :is_public, :is_registerable,
		:is_recurring_template, :organization_id, :creator_id, :start_at, :end_at, :created_at, :updated_at)`

// SQLTemplateRepository stores event records and recurring templates.
type SQLTemplateRepository struct {
	*SQLBaseRepository
}

// NewSQLTemplateRepository creates a new SQL template repository.
func NewSQLTemplateRepository(db *sqlx.DB) *SQLTemplateRepository {
	return &SQLTemplateRepository{
		SQLBaseRepository: NewSQLBaseRepository(db, TableRecurringEventTemplates, "template"),
	}
}

// CreateTemplate inserts a new template.
func (r *SQLTemplateRepository) CreateTemplate(ctx context.Context, template *models.RecurringEventTemplate) error {
	ctx, span := r.startSpan(ctx, "insert", attribute.String("db.sql.id", template.ID))
	defer span.End()

	if r.db == nil {
		return r.unavailable(span)
	}

	normalizeTemplate(template)
	if _, err := r.db.NamedExecContext(ctx, insertTemplateQuery, template); err != nil {
		if isUniqueViolation(err) {
			return recordSpanError(span,
				domain.NewConflictError(fmt.Sprintf("template with id '%s' already exists", template.ID), err),
				"conflict")
		}
		return r.internal(ctx, span, "creating", err, "template_id", template.ID)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetTemplate reads a template by id.
func (r *SQLTemplateRepository) GetTemplate(ctx context.Context, templateID string) (*models.RecurringEventTemplate, error) {
	ctx, span := r.startSpan(ctx, "select", attribute.String("db.sql.id", templateID))
	defer span.End()

	if r.db == nil {
		return nil, r.unavailable(span)
	}

	template := &models.RecurringEventTemplate{}
	err := r.db.GetContext(ctx, template,
		`SELECT `+templateColumns+` FROM recurring_event_templates WHERE id = ?`, templateID)
	if err != nil {
		if isNoRows(err) {
			return nil, r.notFound(span, templateID, err)
		}
		return nil, r.internal(ctx, span, "getting", err, "template_id", templateID)
	}

	span.SetStatus(codes.Ok, "")
	return template, nil
}

func normalizeTemplate(template *models.RecurringEventTemplate) {
	template.StartAt = utcSecond(template.StartAt)
	template.EndAt = utcSecond(template.EndAt)
	template.CreatedAt = utcSecondPtr(template.CreatedAt)
	template.UpdatedAt = utcSecondPtr(template.UpdatedAt)
}
