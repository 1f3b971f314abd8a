// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newScheduledInstance() *RecurringEventInstance {
	start := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	return &RecurringEventInstance{
		ID:                        "instance-2",
		OriginalInstanceStartTime: start,
		ActualStartTime:           start,
		ActualEndTime:             start.Add(time.Hour),
		SequenceNumber:            2,
	}
}

func TestRecurringEventInstance_StateMachine(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("scheduled to cancelled", func(t *testing.T) {
		instance := newScheduledInstance()
		assert.Equal(t, InstanceStateScheduled, instance.State())

		assert.True(t, instance.Cancel(now))
		assert.Equal(t, InstanceStateCancelled, instance.State())
		assert.True(t, instance.HasExceptions)
		assert.Equal(t, 1, instance.Version)
		assert.Equal(t, 2, instance.SequenceNumber)
	})

	t.Run("cancel is terminal", func(t *testing.T) {
		instance := newScheduledInstance()
		assert.True(t, instance.Cancel(now))
		before := *instance

		assert.False(t, instance.Cancel(now.Add(time.Minute)))
		assert.Equal(t, before, *instance)

		assert.False(t, instance.Reschedule(now, now.Add(time.Hour), now))
		assert.Equal(t, before, *instance)
	})

	t.Run("scheduled to modified to cancelled", func(t *testing.T) {
		instance := newScheduledInstance()
		original := instance.OriginalInstanceStartTime
		newStart := original.Add(2 * time.Hour)

		assert.True(t, instance.Reschedule(newStart, newStart.Add(time.Hour), now))
		assert.Equal(t, InstanceStateModified, instance.State())
		assert.False(t, instance.IsCancelled)
		assert.Equal(t, original, instance.OriginalInstanceStartTime)
		assert.Equal(t, newStart, instance.ActualStartTime)

		assert.True(t, instance.Cancel(now))
		assert.Equal(t, InstanceStateCancelled, instance.State())
		assert.Equal(t, 2, instance.Version)
	})
}

func TestResolve(t *testing.T) {
	instance := newScheduledInstance()
	template := &RecurringEventTemplate{
		ID:             "template-1",
		Name:           "Standup",
		Location:       "Room 1",
		IsPublic:       true,
		IsRegisterable: true,
		CreatorID:      "user-1",
	}

	resolved := Resolve(instance, template)

	assert.Equal(t, "Standup", resolved.Name)
	assert.Equal(t, "Room 1", resolved.Location)
	assert.True(t, resolved.IsRegisterable)
	assert.Equal(t, instance.ID, resolved.ID)
	assert.Equal(t, InstanceStateScheduled, resolved.State)

	withoutTemplate := Resolve(instance, nil)
	assert.Empty(t, withoutTemplate.Name)
	assert.Equal(t, instance.SequenceNumber, withoutTemplate.SequenceNumber)
}

func TestInstanceFilter_Validate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   InstanceFilter
		argument string
	}{
		{name: "valid", filter: InstanceFilter{OrganizationID: "org", StartDate: start, EndDate: start.AddDate(0, 1, 0)}},
		{name: "missing organization", filter: InstanceFilter{StartDate: start, EndDate: start}, argument: "organization_id"},
		{name: "missing start", filter: InstanceFilter{OrganizationID: "org", EndDate: start}, argument: "start_date"},
		{name: "end before start", filter: InstanceFilter{OrganizationID: "org", StartDate: start, EndDate: start.Add(-time.Hour)}, argument: "end_date"},
		{name: "negative limit", filter: InstanceFilter{OrganizationID: "org", StartDate: start, EndDate: start, Limit: -1}, argument: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argument, err := tt.filter.Validate()
			assert.Equal(t, tt.argument, argument)
			if tt.argument == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEventReference_Valid(t *testing.T) {
	assert.True(t, EventReference{EventID: "event-1"}.Valid())
	assert.True(t, EventReference{RecurringEventInstanceID: "instance-1"}.Valid())
	assert.False(t, EventReference{}.Valid())
	assert.False(t, EventReference{EventID: "event-1", RecurringEventInstanceID: "instance-1"}.Valid())

	assert.True(t, EventReference{RecurringEventInstanceID: "instance-1"}.IsInstance())
	assert.False(t, EventReference{EventID: "event-1"}.IsInstance())
}
