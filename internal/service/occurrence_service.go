// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/utils"
)

// OccurrenceService implements the domain.OccurrenceService interface
type OccurrenceService struct{}

// NewOccurrenceService creates a new OccurrenceService
func NewOccurrenceService() *OccurrenceService {
	return &OccurrenceService{}
}

var frequencies = map[models.Frequency]rrule.Frequency{
	models.FrequencyDaily:   rrule.DAILY,
	models.FrequencyWeekly:  rrule.WEEKLY,
	models.FrequencyMonthly: rrule.MONTHLY,
	models.FrequencyYearly:  rrule.YEARLY,
}

// CalculateSteps walks the rule from its start and keeps the steps in
// (after, until]. Steps are UTC at second precision.
func (s *OccurrenceService) CalculateSteps(rule *models.RecurrenceRule, after *time.Time, until time.Time, limit int) ([]time.Time, error) {
	if rule == nil || limit <= 0 {
		return []time.Time{}, nil
	}

	r, err := s.newRRule(rule)
	if err != nil {
		return nil, err
	}

	until = until.UTC()
	steps := make([]time.Time, 0)
	next := r.Iterator()
	for len(steps) < limit {
		step, ok := next()
		if !ok {
			break
		}
		step = step.UTC()
		if step.After(until) {
			break
		}
		if after != nil && !step.After(*after) {
			continue
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// RuleString renders the RRULE value of the rule, without DTSTART.
func (s *OccurrenceService) RuleString(rule *models.RecurrenceRule) (string, error) {
	r, err := s.newRRule(rule)
	if err != nil {
		return "", err
	}
	return r.OrigOptions.RRuleString(), nil
}

func (s *OccurrenceService) newRRule(rule *models.RecurrenceRule) (*rrule.RRule, error) {
	freq, ok := frequencies[rule.Frequency]
	if !ok {
		return nil, domain.NewValidationError(
			fmt.Sprintf("frequency %q is not supported", rule.Frequency),
			domain.ErrUnsupportedFreq).WithArgument("frequency")
	}
	if rule.Interval < 1 {
		return nil, domain.NewValidationError(
			fmt.Sprintf("interval must be at least 1, got %d", rule.Interval)).WithArgument("interval")
	}

	option := rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
		Dtstart:  rule.RecurrenceStartDate.UTC().Truncate(time.Second),
		Count:    utils.Deref(rule.Count),
	}
	if rule.RecurrenceEndDate != nil {
		option.Until = rule.RecurrenceEndDate.UTC().Truncate(time.Second)
	}

	r, err := rrule.NewRRule(option)
	if err != nil {
		return nil, domain.NewValidationError("invalid recurrence rule", err).WithArgument("rule")
	}
	return r, nil
}
