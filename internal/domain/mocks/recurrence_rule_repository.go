// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// MockRecurrenceRuleRepository implements RecurrenceRuleRepository for testing
type MockRecurrenceRuleRepository struct {
	mock.Mock
}

func (m *MockRecurrenceRuleRepository) CreateRule(ctx context.Context, rule *models.RecurrenceRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRecurrenceRuleRepository) CreateSeries(ctx context.Context, template *models.RecurringEventTemplate, rule *models.RecurrenceRule) error {
	args := m.Called(ctx, template, rule)
	return args.Error(0)
}

func (m *MockRecurrenceRuleRepository) GetRule(ctx context.Context, ruleID string) (*models.RecurrenceRule, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurrenceRule), args.Error(1)
}

func (m *MockRecurrenceRuleRepository) GetRuleByTemplate(ctx context.Context, templateID string) (*models.RecurrenceRule, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurrenceRule), args.Error(1)
}

func (m *MockRecurrenceRuleRepository) ListRulesByOrganization(ctx context.Context, organizationID string) ([]*models.RecurrenceRule, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurrenceRule), args.Error(1)
}

func (m *MockRecurrenceRuleRepository) AdvanceHorizon(ctx context.Context, ruleID string, expected *time.Time, latest time.Time) error {
	args := m.Called(ctx, ruleID, expected, latest)
	return args.Error(0)
}
