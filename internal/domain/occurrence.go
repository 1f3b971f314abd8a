// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// OccurrenceService defines the interface for calculating the occurrence
// start times of a recurrence rule.
type OccurrenceService interface {
	// CalculateSteps returns the rule steps strictly after `after` (from the
	// recurrence start when nil) and not after until, at most limit of them.
	CalculateSteps(rule *models.RecurrenceRule, after *time.Time, until time.Time, limit int) ([]time.Time, error)

	// RuleString renders the RFC 5545 representation of the rule.
	RuleString(rule *models.RecurrenceRule) (string, error)
}
