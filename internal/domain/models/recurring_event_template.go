// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// RecurringEventTemplate is the event record a recurring series is generated from.
// Templates are never bookable themselves; bookings reference an instance.
type RecurringEventTemplate struct {
	ID                  string     `json:"id" db:"id"`
	Name                string     `json:"name" db:"name"`
	Description         string     `json:"description,omitempty" db:"description"`
	Location            string     `json:"location,omitempty" db:"location"`
	AllDay              bool       `json:"all_day" db:"all_day"`
	IsPublic            bool       `json:"is_public" db:"is_public"`
	IsRegisterable      bool       `json:"is_registerable" db:"is_registerable"`
	IsRecurringTemplate bool       `json:"is_recurring_template" db:"is_recurring_template"`
	OrganizationID      string     `json:"organization_id" db:"organization_id"`
	CreatorID           string     `json:"creator_id" db:"creator_id"`
	StartAt             time.Time  `json:"start_at" db:"start_at"`
	EndAt               time.Time  `json:"end_at" db:"end_at"`
	CreatedAt           *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Duration is the length every generated instance inherits.
func (t *RecurringEventTemplate) Duration() time.Duration {
	if t == nil {
		return 0
	}
	return t.EndAt.Sub(t.StartAt)
}

// Validate returns the name of the first invalid field, or an empty string.
func (t *RecurringEventTemplate) Validate() (string, error) {
	switch {
	case t == nil:
		return "template", fmt.Errorf("template is required")
	case t.Name == "":
		return "name", fmt.Errorf("name is required")
	case t.OrganizationID == "":
		return "organization_id", fmt.Errorf("organization_id is required")
	case t.CreatorID == "":
		return "creator_id", fmt.Errorf("creator_id is required")
	case t.StartAt.IsZero():
		return "start_at", fmt.Errorf("start_at is required")
	case !t.EndAt.After(t.StartAt):
		return "end_at", fmt.Errorf("end_at must be after start_at")
	}
	return "", nil
}
