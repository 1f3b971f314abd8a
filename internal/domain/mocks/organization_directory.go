// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// MockOrganizationDirectory implements OrganizationDirectory for testing
type MockOrganizationDirectory struct {
	mock.Mock
}

func (m *MockOrganizationDirectory) MembershipRole(ctx context.Context, organizationID, userID string) (models.MembershipRole, error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).(models.MembershipRole), args.Error(1)
}

func (m *MockOrganizationDirectory) IsPlatformAdministrator(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
