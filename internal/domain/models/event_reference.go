// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// EventReference is the foreign key downstream features (attendees, venue
// bookings, invitations) keep: a standalone event or one recurring instance.
type EventReference struct {
	EventID                  string `json:"event_id,omitempty"`
	RecurringEventInstanceID string `json:"recurring_event_instance_id,omitempty"`
}

// Valid reports whether exactly one side of the reference is set.
func (r EventReference) Valid() bool {
	return (r.EventID == "") != (r.RecurringEventInstanceID == "")
}

// IsInstance reports whether the reference points at a recurring instance.
func (r EventReference) IsInstance() bool {
	return r.RecurringEventInstanceID != ""
}

// ResolvedReference is what a reference currently points at. Exactly one of
// the fields is set.
type ResolvedReference struct {
	Event    *RecurringEventTemplate `json:"event,omitempty"`
	Instance *ResolvedInstance       `json:"instance,omitempty"`
}
