// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// MembershipRole is a user's role inside one organization.
type MembershipRole string

const (
	// MembershipRoleNone means the user is not a member.
	MembershipRoleNone          MembershipRole = ""
	MembershipRoleAdministrator MembershipRole = "administrator"
	MembershipRoleRegular       MembershipRole = "regular"
)

// UserRole is a user's platform-wide role.
type UserRole string

const (
	UserRoleAdministrator UserRole = "administrator"
	UserRoleRegular       UserRole = "regular"
)

// OrganizationMembership is the directory record linking a user to an organization.
type OrganizationMembership struct {
	OrganizationID string         `json:"organization_id"`
	MemberID       string         `json:"member_id"`
	Role           MembershipRole `json:"role"`
}

// User is the directory record for a platform user.
type User struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}
