// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// Directory KV bucket names.
const (
	KVStoreNameOrganizationMemberships = "organization-memberships"
	KVStoreNameUsers                   = "users"
)

// NatsDirectoryRepository reads organization memberships and platform users
// from the directory KV buckets.
type NatsDirectoryRepository struct {
	memberships *kvReader[models.OrganizationMembership]
	users       *kvReader[models.User]
	keyBuilder  *KeyBuilder
}

// NewNatsDirectoryRepository creates a directory backed by two KV buckets.
func NewNatsDirectoryRepository(membershipsKV, usersKV INatsKeyValue) *NatsDirectoryRepository {
	return &NatsDirectoryRepository{
		memberships: newKVReader[models.OrganizationMembership](membershipsKV, "membership"),
		users:       newKVReader[models.User](usersKV, "user"),
		keyBuilder:  NewKeyBuilder(""),
	}
}

// IsReady checks if both buckets are available
func (r *NatsDirectoryRepository) IsReady() bool {
	return r.memberships.ready() && r.users.ready()
}

// MembershipRole returns the user's role in the organization, or
// MembershipRoleNone when there is no membership record.
func (r *NatsDirectoryRepository) MembershipRole(ctx context.Context, organizationID, userID string) (models.MembershipRole, error) {
	membership, err := r.memberships.get(ctx, r.keyBuilder.MembershipKey(organizationID, userID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return models.MembershipRoleNone, nil
		}
		return models.MembershipRoleNone, err
	}

	switch membership.Role {
	case models.MembershipRoleAdministrator, models.MembershipRoleRegular:
		return membership.Role, nil
	}

	slog.WarnContext(ctx, "unknown membership role, treating as regular member",
		"organization_id", organizationID, "user_id", userID, "role", membership.Role)
	return models.MembershipRoleRegular, nil
}

// IsPlatformAdministrator reports whether the user holds the platform
// administrator role. Unknown users are not administrators.
func (r *NatsDirectoryRepository) IsPlatformAdministrator(ctx context.Context, userID string) (bool, error) {
	user, err := r.users.get(ctx, r.keyBuilder.UserKey(userID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return false, nil
		}
		return false, err
	}

	return user.Role == models.UserRoleAdministrator, nil
}
