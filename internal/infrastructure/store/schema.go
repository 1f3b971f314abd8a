// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

// Table names
const (
	TableRecurringEventTemplates = "recurring_event_templates"
	TableRecurrenceRules         = "recurrence_rules"
	TableRecurringEventInstances = "recurring_event_instances"
)

// Times are stored as DATETIME text in UTC at second precision so that string
// comparison matches chronological order.
const schema = `
CREATE TABLE IF NOT EXISTS recurring_event_templates (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	location              TEXT NOT NULL DEFAULT '',
	all_day               BOOLEAN NOT NULL DEFAULT 0,
	is_public             BOOLEAN NOT NULL DEFAULT 0,
	is_registerable       BOOLEAN NOT NULL DEFAULT 0,
	is_recurring_template BOOLEAN NOT NULL DEFAULT 0,
	organization_id       TEXT NOT NULL,
	creator_id            TEXT NOT NULL,
	start_at              DATETIME NOT NULL,
	end_at                DATETIME NOT NULL,
	created_at            DATETIME,
	updated_at            DATETIME
);

CREATE TABLE IF NOT EXISTS recurrence_rules (
	id                      TEXT PRIMARY KEY,
	base_recurring_event_id TEXT NOT NULL UNIQUE REFERENCES recurring_event_templates(id),
	original_series_id      TEXT NOT NULL,
	frequency               TEXT NOT NULL CHECK (frequency IN ('DAILY', 'WEEKLY', 'MONTHLY', 'YEARLY')),
	interval                INTEGER NOT NULL CHECK (interval >= 1),
	count                   INTEGER CHECK (count IS NULL OR count >= 1),
	recurrence_start_date   DATETIME NOT NULL,
	recurrence_end_date     DATETIME,
	recurrence_rule_string  TEXT NOT NULL DEFAULT '',
	latest_instance_date    DATETIME,
	organization_id         TEXT NOT NULL,
	creator_id              TEXT NOT NULL,
	created_at              DATETIME,
	updated_at              DATETIME
);

CREATE INDEX IF NOT EXISTS idx_recurrence_rules_organization
	ON recurrence_rules (organization_id);

CREATE TABLE IF NOT EXISTS recurring_event_instances (
	id                           TEXT PRIMARY KEY,
	base_recurring_event_id      TEXT NOT NULL REFERENCES recurring_event_templates(id),
	recurrence_rule_id           TEXT NOT NULL REFERENCES recurrence_rules(id),
	original_series_id           TEXT NOT NULL,
	organization_id              TEXT NOT NULL,
	original_instance_start_time DATETIME NOT NULL,
	actual_start_time            DATETIME NOT NULL,
	actual_end_time              DATETIME NOT NULL,
	sequence_number              INTEGER NOT NULL CHECK (sequence_number >= 1),
	is_cancelled                 BOOLEAN NOT NULL DEFAULT 0,
	has_exceptions               BOOLEAN NOT NULL DEFAULT 0,
	version                      INTEGER NOT NULL DEFAULT 0,
	generated_at                 DATETIME NOT NULL,
	last_updated_at              DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_series_sequence
	ON recurring_event_instances (original_series_id, sequence_number);

CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_rule_original_start
	ON recurring_event_instances (recurrence_rule_id, original_instance_start_time);

CREATE INDEX IF NOT EXISTS idx_instances_organization_start
	ON recurring_event_instances (organization_id, actual_start_time);
`

const templateColumns = `id, name, description, location, all_day, is_public, is_registerable,
	is_recurring_template, organization_id, creator_id, start_at, end_at, created_at, updated_at`

const ruleColumns = `id, base_recurring_event_id, original_series_id, frequency, interval, count,
	recurrence_start_date, recurrence_end_date, recurrence_rule_string, latest_instance_date,
	organization_id, creator_id, created_at, updated_at`

const instanceColumns = `id, base_recurring_event_id, recurrence_rule_id, original_series_id,
	organization_id, original_instance_start_time, actual_start_time, actual_end_time,
	sequence_number, is_cancelled, has_exceptions, version, generated_at, last_updated_at`
