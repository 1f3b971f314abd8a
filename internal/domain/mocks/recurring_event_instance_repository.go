// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// MockRecurringEventInstanceRepository implements RecurringEventInstanceRepository for testing
type MockRecurringEventInstanceRepository struct {
	mock.Mock
}

func (m *MockRecurringEventInstanceRepository) GetInstance(ctx context.Context, instanceID string) (*models.RecurringEventInstance, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurringEventInstance), args.Error(1)
}

func (m *MockRecurringEventInstanceRepository) GetInstancesByIDs(ctx context.Context, instanceIDs []string) ([]*models.RecurringEventInstance, error) {
	args := m.Called(ctx, instanceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringEventInstance), args.Error(1)
}

func (m *MockRecurringEventInstanceRepository) ListInstancesInRange(ctx context.Context, filter models.InstanceFilter) ([]*models.RecurringEventInstance, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringEventInstance), args.Error(1)
}

func (m *MockRecurringEventInstanceRepository) MaxSequenceNumber(ctx context.Context, originalSeriesID string) (int, error) {
	args := m.Called(ctx, originalSeriesID)
	return args.Int(0), args.Error(1)
}

func (m *MockRecurringEventInstanceRepository) CommitMaterialization(ctx context.Context, ruleID string, expected *time.Time, instances []*models.RecurringEventInstance) error {
	args := m.Called(ctx, ruleID, expected, instances)
	return args.Error(0)
}

func (m *MockRecurringEventInstanceRepository) UpdateInstanceException(ctx context.Context, instance *models.RecurringEventInstance, expectedVersion int) error {
	args := m.Called(ctx, instance, expectedVersion)
	return args.Error(0)
}
