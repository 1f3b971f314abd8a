// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// MockOccurrenceService is a mock implementation of domain.OccurrenceService
type MockOccurrenceService struct {
	mock.Mock
}

func (m *MockOccurrenceService) CalculateSteps(rule *models.RecurrenceRule, after *time.Time, until time.Time, limit int) ([]time.Time, error) {
	args := m.Called(rule, after, until, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockOccurrenceService) RuleString(rule *models.RecurrenceRule) (string, error) {
	args := m.Called(rule)
	return args.String(0), args.Error(1)
}

// Ensure MockOccurrenceService implements domain.OccurrenceService
var _ domain.OccurrenceService = (*MockOccurrenceService)(nil)
