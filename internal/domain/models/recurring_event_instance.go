// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// InstanceState is the exception state of a single instance.
type InstanceState string

const (
	// InstanceStateScheduled is an instance exactly as the rule predicted it.
	InstanceStateScheduled InstanceState = "scheduled"
	// InstanceStateModified is an instance whose actual times diverge from the prediction.
	InstanceStateModified InstanceState = "modified"
	// InstanceStateCancelled is terminal; the row stays resolvable.
	InstanceStateCancelled InstanceState = "cancelled"
)

// RecurringEventInstance is one concrete occurrence of a recurring series.
type RecurringEventInstance struct {
	ID                        string    `json:"id" db:"id"`
	BaseRecurringEventID      string    `json:"base_recurring_event_id" db:"base_recurring_event_id"`
	RecurrenceRuleID          string    `json:"recurrence_rule_id" db:"recurrence_rule_id"`
	OriginalSeriesID          string    `json:"original_series_id" db:"original_series_id"`
	OrganizationID            string    `json:"organization_id" db:"organization_id"`
	OriginalInstanceStartTime time.Time `json:"original_instance_start_time" db:"original_instance_start_time"`
	ActualStartTime           time.Time `json:"actual_start_time" db:"actual_start_time"`
	ActualEndTime             time.Time `json:"actual_end_time" db:"actual_end_time"`
	SequenceNumber            int       `json:"sequence_number" db:"sequence_number"`
	IsCancelled               bool      `json:"is_cancelled" db:"is_cancelled"`
	HasExceptions             bool      `json:"has_exceptions" db:"has_exceptions"`
	Version                   int       `json:"version" db:"version"`
	GeneratedAt               time.Time `json:"generated_at" db:"generated_at"`
	LastUpdatedAt             time.Time `json:"last_updated_at" db:"last_updated_at"`
}

// State derives the instance state from its flags.
func (i *RecurringEventInstance) State() InstanceState {
	switch {
	case i.IsCancelled:
		return InstanceStateCancelled
	case i.HasExceptions:
		return InstanceStateModified
	default:
		return InstanceStateScheduled
	}
}

// Cancel moves the instance to the cancelled state. It returns false and leaves
// the instance untouched when it is already cancelled.
func (i *RecurringEventInstance) Cancel(now time.Time) bool {
	if i.IsCancelled {
		return false
	}
	i.IsCancelled = true
	i.HasExceptions = true
	i.Version++
	i.LastUpdatedAt = now
	return true
}

// Reschedule sets new actual times. It returns false and leaves the instance
// untouched when it is cancelled.
func (i *RecurringEventInstance) Reschedule(start, end, now time.Time) bool {
	if i.IsCancelled {
		return false
	}
	i.ActualStartTime = start
	i.ActualEndTime = end
	i.HasExceptions = true
	i.Version++
	i.LastUpdatedAt = now
	return true
}

// ResolvedInstance is an instance with the template attributes it inherits.
type ResolvedInstance struct {
	RecurringEventInstance
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Location       string        `json:"location,omitempty"`
	AllDay         bool          `json:"all_day"`
	IsPublic       bool          `json:"is_public"`
	IsRegisterable bool          `json:"is_registerable"`
	CreatorID      string        `json:"creator_id"`
	State          InstanceState `json:"state"`
}

// Resolve combines an instance with its template.
func Resolve(instance *RecurringEventInstance, template *RecurringEventTemplate) *ResolvedInstance {
	resolved := &ResolvedInstance{
		RecurringEventInstance: *instance,
		State:                  instance.State(),
	}
	if template != nil {
		resolved.Name = template.Name
		resolved.Description = template.Description
		resolved.Location = template.Location
		resolved.AllDay = template.AllDay
		resolved.IsPublic = template.IsPublic
		resolved.IsRegisterable = template.IsRegisterable
		resolved.CreatorID = template.CreatorID
	}
	return resolved
}

// InstanceFilter selects instances of an organization by actual start time.
type InstanceFilter struct {
	OrganizationID     string    `json:"organization_id"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	IncludeCancelled   bool      `json:"include_cancelled"`
	Limit              int       `json:"limit,omitempty"`
	ExcludeInstanceIDs []string  `json:"exclude_instance_ids,omitempty"`
}

// Validate returns the offending argument when the filter is malformed.
func (f *InstanceFilter) Validate() (string, error) {
	switch {
	case f.OrganizationID == "":
		return "organization_id", fmt.Errorf("organization_id is required")
	case f.StartDate.IsZero():
		return "start_date", fmt.Errorf("start_date is required")
	case f.EndDate.IsZero():
		return "end_date", fmt.Errorf("end_date is required")
	case f.EndDate.Before(f.StartDate):
		return "end_date", fmt.Errorf("end_date must not be before start_date")
	case f.Limit < 0:
		return "limit", fmt.Errorf("limit must not be negative")
	}
	return "", nil
}

// Tags returns the search tags of a resolved instance.
func (r *ResolvedInstance) Tags() []string {
	tags := []string{}

	if r == nil {
		return nil
	}

	if r.ID != "" {
		// without prefix
		tags = append(tags, r.ID)
		// with prefix
		tags = append(tags, fmt.Sprintf("recurring_event_instance_id:%s", r.ID))
	}

	if r.BaseRecurringEventID != "" {
		tags = append(tags, fmt.Sprintf("base_recurring_event_id:%s", r.BaseRecurringEventID))
	}

	if r.OriginalSeriesID != "" {
		tags = append(tags, fmt.Sprintf("original_series_id:%s", r.OriginalSeriesID))
	}

	if r.OrganizationID != "" {
		tags = append(tags, fmt.Sprintf("organization_id:%s", r.OrganizationID))
	}

	if r.Name != "" {
		tags = append(tags, fmt.Sprintf("name:%s", r.Name))
	}

	tags = append(tags, fmt.Sprintf("state:%s", r.State))

	return tags
}
