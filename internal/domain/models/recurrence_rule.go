// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Frequency is the unit a recurrence rule steps by.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// IsSupported reports whether the frequency can be materialized.
func (f Frequency) IsSupported() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurrenceRule defines how a template repeats and how far its instances have
// been generated.
type RecurrenceRule struct {
	ID                   string     `json:"id" db:"id"`
	BaseRecurringEventID string     `json:"base_recurring_event_id" db:"base_recurring_event_id"`
	OriginalSeriesID     string     `json:"original_series_id" db:"original_series_id"`
	Frequency            Frequency  `json:"frequency" db:"frequency"`
	Interval             int        `json:"interval" db:"interval"`
	Count                *int       `json:"count,omitempty" db:"count"`
	RecurrenceStartDate  time.Time  `json:"recurrence_start_date" db:"recurrence_start_date"`
	RecurrenceEndDate    *time.Time `json:"recurrence_end_date,omitempty" db:"recurrence_end_date"`
	RecurrenceRuleString string     `json:"recurrence_rule_string" db:"recurrence_rule_string"`
	// LatestInstanceDate is the start time of the last generated instance; nil
	// until the first materialization.
	LatestInstanceDate *time.Time `json:"latest_instance_date,omitempty" db:"latest_instance_date"`
	OrganizationID     string     `json:"organization_id" db:"organization_id"`
	CreatorID          string     `json:"creator_id" db:"creator_id"`
	CreatedAt          *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// IsNeverEnding reports whether the rule has neither an end date nor a count.
func (r *RecurrenceRule) IsNeverEnding() bool {
	return r.RecurrenceEndDate == nil && r.Count == nil
}

// Validate returns the offending argument and a description when the rule
// parameters are malformed.
func (r *RecurrenceRule) Validate() (string, error) {
	switch {
	case r == nil:
		return "rule", fmt.Errorf("rule is required")
	case !r.Frequency.IsSupported():
		return "frequency", fmt.Errorf("unsupported frequency %q", r.Frequency)
	case r.Interval < 1:
		return "interval", fmt.Errorf("interval must be at least 1, got %d", r.Interval)
	case r.Count != nil && *r.Count < 1:
		return "count", fmt.Errorf("count must be at least 1, got %d", *r.Count)
	case r.RecurrenceStartDate.IsZero():
		return "recurrence_start_date", fmt.Errorf("recurrence_start_date is required")
	case r.RecurrenceEndDate != nil && r.RecurrenceEndDate.Before(r.RecurrenceStartDate):
		return "recurrence_end_date", fmt.Errorf("recurrence_end_date must not be before recurrence_start_date")
	}
	return "", nil
}
