// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the recurring event service sends messages about.
const (
	// IndexRecurringEventInstanceSubject is the subject for the recurring event instance indexing.
	// The subject is of the form: lfx.index.recurring_event_instance
	IndexRecurringEventInstanceSubject = "lfx.index.recurring_event_instance"

	// InstanceCancelledSubject is the subject for instance cancellation events.
	// The subject is of the form: lfx.recurring-events-api.instance_cancelled
	InstanceCancelledSubject = "lfx.recurring-events-api.instance_cancelled"

	// InstanceRescheduledSubject is the subject for instance reschedule events.
	// The subject is of the form: lfx.recurring-events-api.instance_rescheduled
	InstanceRescheduledSubject = "lfx.recurring-events-api.instance_rescheduled"
)

// NATS queue group of the service.
const (
	// RecurringEventsAPIQueue is the queue group shared by service replicas.
	// The queue is of the form: lfx.recurring-events-api.queue
	RecurringEventsAPIQueue = "lfx.recurring-events-api.queue"
)

// NATS request/reply subjects that the recurring event service handles.
const (
	// CreateTemplateSubject stores an event record, standalone or template.
	// The subject is of the form: lfx.recurring-events-api.create_template
	CreateTemplateSubject = "lfx.recurring-events-api.create_template"

	// CreateRuleSubject attaches a recurrence rule to an existing template.
	// The subject is of the form: lfx.recurring-events-api.create_rule
	CreateRuleSubject = "lfx.recurring-events-api.create_rule"

	// CreateSeriesSubject creates a template and its recurrence rule together.
	// The subject is of the form: lfx.recurring-events-api.create_series
	CreateSeriesSubject = "lfx.recurring-events-api.create_series"

	// GetRuleSubject reads a recurrence rule by id.
	GetRuleSubject = "lfx.recurring-events-api.get_rule"

	// GetRuleByTemplateSubject reads the recurrence rule of a template.
	GetRuleByTemplateSubject = "lfx.recurring-events-api.get_rule_by_template"

	// AdvanceHorizonSubject moves a rule's latest instance date forward.
	AdvanceHorizonSubject = "lfx.recurring-events-api.advance_horizon"

	// MaterializeSubject generates the instances of one rule up to a date.
	MaterializeSubject = "lfx.recurring-events-api.materialize"

	// MaterializeOrganizationSubject generates instances for every rule of an organization.
	MaterializeOrganizationSubject = "lfx.recurring-events-api.materialize_organization"

	// CancelInstanceSubject cancels one instance.
	CancelInstanceSubject = "lfx.recurring-events-api.cancel_instance"

	// RescheduleInstanceSubject changes the actual times of one instance.
	RescheduleInstanceSubject = "lfx.recurring-events-api.reschedule_instance"

	// GetInstanceSubject reads one instance, cancelled or not.
	GetInstanceSubject = "lfx.recurring-events-api.get_instance"

	// GetInstancesSubject reads a batch of instances by id.
	GetInstancesSubject = "lfx.recurring-events-api.get_instances"

	// ListInstancesSubject lists an organization's instances in a date range.
	ListInstancesSubject = "lfx.recurring-events-api.list_instances"

	// ResolveReferenceSubject resolves a downstream event reference.
	ResolveReferenceSubject = "lfx.recurring-events-api.resolve_reference"

	// ExportCalendarSubject renders an organization's instances in a date range as iCalendar.
	ExportCalendarSubject = "lfx.recurring-events-api.export_calendar"
)

// MessageAction is a type for the action of an indexer message.
type MessageAction string

// MessageAction constants for the action of an indexer message.
const (
	// ActionCreated is the action for a resource creation message.
	ActionCreated MessageAction = "created"
	// ActionUpdated is the action for a resource update message.
	ActionUpdated MessageAction = "updated"
)

// IndexerMessage is a NATS message schema for keeping the search index in step
// with instance changes.
type IndexerMessage struct {
	Action  MessageAction     `json:"action"`
	Headers map[string]string `json:"headers"`
	Data    any               `json:"data"`
	// Tags is a list of tags to be set on the indexed resource for search.
	Tags []string `json:"tags"`
}

// InstanceChangedMessage is sent after an exception is applied to an instance so
// downstream features (registrations, bookings, invitations) can react.
type InstanceChangedMessage struct {
	InstanceID       string        `json:"instance_id"`
	OriginalSeriesID string        `json:"original_series_id"`
	OrganizationID   string        `json:"organization_id"`
	State            InstanceState `json:"state"`
	ActualStartTime  time.Time     `json:"actual_start_time"`
	ActualEndTime    time.Time     `json:"actual_end_time"`
	Version          int           `json:"version"`
	ActorID          string        `json:"actor_id"`
}

// CreateSeriesRequest is the payload of [CreateSeriesSubject].
type CreateSeriesRequest struct {
	Template RecurringEventTemplate `json:"template"`
	Rule     RecurrenceRule         `json:"rule"`
}

// CreateSeriesResponse is the reply of [CreateSeriesSubject].
type CreateSeriesResponse struct {
	Template *RecurringEventTemplate `json:"template"`
	Rule     *RecurrenceRule         `json:"rule"`
}

// RuleRequest is the payload of [GetRuleSubject] and [GetRuleByTemplateSubject].
type RuleRequest struct {
	RuleID     string `json:"rule_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
}

// AdvanceHorizonRequest is the payload of [AdvanceHorizonSubject].
type AdvanceHorizonRequest struct {
	RuleID             string    `json:"rule_id"`
	LatestInstanceDate time.Time `json:"latest_instance_date"`
}

// MaterializeRequest is the payload of [MaterializeSubject].
type MaterializeRequest struct {
	RuleID string    `json:"rule_id"`
	Until  time.Time `json:"until"`
}

// MaterializeResponse is the reply of [MaterializeSubject].
type MaterializeResponse struct {
	Instances []*RecurringEventInstance `json:"instances"`
	Attempts  int                       `json:"attempts"`
}

// MaterializeOrganizationRequest is the payload of [MaterializeOrganizationSubject].
type MaterializeOrganizationRequest struct {
	OrganizationID string    `json:"organization_id"`
	Until          time.Time `json:"until"`
}

// MaterializeOrganizationResponse is the reply of [MaterializeOrganizationSubject].
type MaterializeOrganizationResponse struct {
	Generated map[string]int    `json:"generated"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// CancelInstanceRequest is the payload of [CancelInstanceSubject].
type CancelInstanceRequest struct {
	InstanceID string `json:"instance_id"`
	ActorID    string `json:"actor_id"`
}

// RescheduleInstanceRequest is the payload of [RescheduleInstanceSubject].
type RescheduleInstanceRequest struct {
	InstanceID string     `json:"instance_id"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
	ActorID    string     `json:"actor_id"`
}

// InstanceRequest is the payload of [GetInstanceSubject].
type InstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// InstancesRequest is the payload of [GetInstancesSubject].
type InstancesRequest struct {
	InstanceIDs []string `json:"instance_ids"`
}

// CalendarExport is the reply of [ExportCalendarSubject].
type CalendarExport struct {
	ContentType string `json:"content_type"`
	Calendar    string `json:"calendar"`
}

// ReplyError is the error part of a reply envelope.
type ReplyError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Argument  string `json:"argument,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Reply is the envelope every request/reply subject answers with.
type Reply struct {
	Data  any         `json:"data,omitempty"`
	Error *ReplyError `json:"error,omitempty"`
}
