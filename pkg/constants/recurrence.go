// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Materialization limits.
const (
	// DefaultMaterializeMaxInstances caps how many instances a single
	// materialization call generates. The horizon only advances to the last
	// instance generated, so the next call continues where this one stopped.
	DefaultMaterializeMaxInstances = 1000

	// DefaultMaterializeMaxAttempts is how many times a materialize request is
	// tried when it loses a race with a concurrent writer.
	DefaultMaterializeMaxAttempts = 3

	// DefaultMaterializeWorkers bounds the rules materialized in parallel for one organization.
	DefaultMaterializeWorkers = 4
)

// Instance query limits.
const (
	// DefaultInstanceListLimit is used when a range query does not set a limit.
	DefaultInstanceListLimit = 1000
)

// Metric names emitted by the materializer.
const (
	MetricInstancesMaterialized = "recurring_event.instances.materialized"
	MetricMaterializeConflicts  = "recurring_event.materialize.conflicts"
)
