// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// TemplateRepository defines the storage operations for event records and
// recurring templates.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, template *models.RecurringEventTemplate) error
	GetTemplate(ctx context.Context, templateID string) (*models.RecurringEventTemplate, error)
}

// RecurrenceRuleRepository defines the storage operations for recurrence rules.
type RecurrenceRuleRepository interface {
	CreateRule(ctx context.Context, rule *models.RecurrenceRule) error
	// CreateSeries stores a template and its rule in one transaction.
	CreateSeries(ctx context.Context, template *models.RecurringEventTemplate, rule *models.RecurrenceRule) error

	GetRule(ctx context.Context, ruleID string) (*models.RecurrenceRule, error)
	GetRuleByTemplate(ctx context.Context, templateID string) (*models.RecurrenceRule, error)
	ListRulesByOrganization(ctx context.Context, organizationID string) ([]*models.RecurrenceRule, error)

	// AdvanceHorizon sets latest_instance_date to latest only if it still equals
	// expected. A changed value is reported as a retryable conflict.
	AdvanceHorizon(ctx context.Context, ruleID string, expected *time.Time, latest time.Time) error
}

// RecurringEventInstanceRepository defines the storage operations for
// materialized instances.
type RecurringEventInstanceRepository interface {
	GetInstance(ctx context.Context, instanceID string) (*models.RecurringEventInstance, error)
	// GetInstancesByIDs skips unknown ids.
	GetInstancesByIDs(ctx context.Context, instanceIDs []string) ([]*models.RecurringEventInstance, error)
	ListInstancesInRange(ctx context.Context, filter models.InstanceFilter) ([]*models.RecurringEventInstance, error)

	// MaxSequenceNumber returns 0 for a series without instances.
	MaxSequenceNumber(ctx context.Context, originalSeriesID string) (int, error)

	// CommitMaterialization inserts the instances and moves the rule horizon to
	// the last instance start in one transaction. It fails with a retryable
	// conflict when the horizon is no longer expected or the sequence numbers
	// no longer continue the series.
	CommitMaterialization(ctx context.Context, ruleID string, expected *time.Time, instances []*models.RecurringEventInstance) error

	// UpdateInstanceException persists a cancel or reschedule. The row must
	// still be uncancelled and at expectedVersion.
	UpdateInstanceException(ctx context.Context, instance *models.RecurringEventInstance, expectedVersion int) error
}
