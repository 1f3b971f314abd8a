// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// OrganizationDirectory answers the role lookups exception authorization needs.
type OrganizationDirectory interface {
	// MembershipRole returns MembershipRoleNone when the user is not a member.
	MembershipRole(ctx context.Context, organizationID, userID string) (models.MembershipRole, error)
	IsPlatformAdministrator(ctx context.Context, userID string) (bool, error)
}
