// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// MockTemplateRepository implements TemplateRepository for testing
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) CreateTemplate(ctx context.Context, template *models.RecurringEventTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockTemplateRepository) GetTemplate(ctx context.Context, templateID string) (*models.RecurringEventTemplate, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurringEventTemplate), args.Error(1)
}
