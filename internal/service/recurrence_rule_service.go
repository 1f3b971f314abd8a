// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/utils"
)

// RecurrenceRuleService manages templates, their recurrence rules, and the
// materialization horizon of each rule.
type RecurrenceRuleService struct {
	templateRepository domain.TemplateRepository
	ruleRepository     domain.RecurrenceRuleRepository
	occurrenceService  domain.OccurrenceService
}

// NewRecurrenceRuleService creates a new RecurrenceRuleService.
func NewRecurrenceRuleService(
	templateRepository domain.TemplateRepository,
	ruleRepository domain.RecurrenceRuleRepository,
	occurrenceService domain.OccurrenceService,
) *RecurrenceRuleService {
	return &RecurrenceRuleService{
		templateRepository: templateRepository,
		ruleRepository:     ruleRepository,
		occurrenceService:  occurrenceService,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *RecurrenceRuleService) ServiceReady() bool {
	return s.templateRepository != nil &&
		s.ruleRepository != nil &&
		s.occurrenceService != nil
}

func (s *RecurrenceRuleService) notReady(ctx context.Context) error {
	slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
	return domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
}

// CreateTemplate stores a standalone event or a recurring template.
func (s *RecurrenceRuleService) CreateTemplate(ctx context.Context, template *models.RecurringEventTemplate) (*models.RecurringEventTemplate, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}

	if err := s.prepareTemplate(ctx, template); err != nil {
		return nil, err
	}

	if err := s.templateRepository.CreateTemplate(ctx, template); err != nil {
		slog.ErrorContext(ctx, "error creating template", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "created template",
		"template_id", template.ID,
		"organization_id", template.OrganizationID,
		"is_recurring_template", template.IsRecurringTemplate,
	)
	return template, nil
}

// Create attaches a recurrence rule to an existing recurring template.
func (s *RecurrenceRuleService) Create(ctx context.Context, rule *models.RecurrenceRule) (*models.RecurrenceRule, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if rule == nil {
		return nil, domain.NewValidationError("rule is required").WithArgument("rule")
	}
	if rule.BaseRecurringEventID == "" {
		return nil, domain.NewValidationError("base_recurring_event_id is required").WithArgument("base_recurring_event_id")
	}

	ctx = logging.AppendCtx(ctx, slog.String("template_id", rule.BaseRecurringEventID))

	template, err := s.templateRepository.GetTemplate(ctx, rule.BaseRecurringEventID)
	if err != nil {
		slog.WarnContext(ctx, "error getting template for rule", logging.ErrKey, err)
		return nil, err
	}
	if !template.IsRecurringTemplate {
		return nil, domain.NewValidationError(
			fmt.Sprintf("event '%s' is not a recurring template", template.ID)).WithArgument("base_recurring_event_id")
	}

	if err := s.prepareRule(rule, template); err != nil {
		return nil, err
	}

	existing, err := s.ruleRepository.GetRuleByTemplate(ctx, template.ID)
	switch {
	case err == nil:
		return nil, domain.NewConflictError(
			fmt.Sprintf("template '%s' already has rule '%s'", template.ID, existing.ID),
			domain.ErrRuleAlreadyExists).WithArgument("base_recurring_event_id")
	case domain.GetErrorType(err) != domain.ErrorTypeNotFound:
		slog.ErrorContext(ctx, "error checking for an existing rule", logging.ErrKey, err)
		return nil, err
	}

	if err := s.ruleRepository.CreateRule(ctx, rule); err != nil {
		slog.ErrorContext(ctx, "error creating recurrence rule", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "created recurrence rule",
		"rule_id", rule.ID,
		"original_series_id", rule.OriginalSeriesID,
		"rule", rule.RecurrenceRuleString,
	)
	return rule, nil
}

// CreateSeries stores a recurring template and its rule together. The rule
// inherits the organization, creator and start of the template when unset.
func (s *RecurrenceRuleService) CreateSeries(ctx context.Context, template *models.RecurringEventTemplate, rule *models.RecurrenceRule) (*models.RecurringEventTemplate, *models.RecurrenceRule, error) {
	if !s.ServiceReady() {
		return nil, nil, s.notReady(ctx)
	}
	if rule == nil {
		return nil, nil, domain.NewValidationError("rule is required").WithArgument("rule")
	}

	if template != nil {
		template.IsRecurringTemplate = true
	}
	if err := s.prepareTemplate(ctx, template); err != nil {
		return nil, nil, err
	}

	rule.BaseRecurringEventID = template.ID
	if err := s.prepareRule(rule, template); err != nil {
		return nil, nil, err
	}

	if err := s.ruleRepository.CreateSeries(ctx, template, rule); err != nil {
		slog.ErrorContext(ctx, "error creating recurring series", logging.ErrKey, err)
		return nil, nil, err
	}

	slog.InfoContext(ctx, "created recurring series",
		"template_id", template.ID,
		"rule_id", rule.ID,
		"original_series_id", rule.OriginalSeriesID,
		"rule", rule.RecurrenceRuleString,
	)
	return template, rule, nil
}

// Get returns the rule with the given id.
func (s *RecurrenceRuleService) Get(ctx context.Context, ruleID string) (*models.RecurrenceRule, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if ruleID == "" {
		return nil, domain.NewValidationError("rule_id is required").WithArgument("rule_id")
	}
	return s.ruleRepository.GetRule(ctx, ruleID)
}

// GetByTemplate returns the rule attached to the template.
func (s *RecurrenceRuleService) GetByTemplate(ctx context.Context, templateID string) (*models.RecurrenceRule, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if templateID == "" {
		return nil, domain.NewValidationError("base_recurring_event_id is required").WithArgument("base_recurring_event_id")
	}
	return s.ruleRepository.GetRuleByTemplate(ctx, templateID)
}

// AdvanceHorizon moves the rule's latest_instance_date forward. Moving it
// backwards is a conflict and setting the current value is a no-op.
func (s *RecurrenceRuleService) AdvanceHorizon(ctx context.Context, ruleID string, latest time.Time) (*models.RecurrenceRule, error) {
	if !s.ServiceReady() {
		return nil, s.notReady(ctx)
	}
	if latest.IsZero() {
		return nil, domain.NewValidationError("latest_instance_date is required").WithArgument("latest_instance_date")
	}

	rule, err := s.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	latest = utcSecond(latest)
	current := rule.LatestInstanceDate
	if current != nil {
		if latest.Before(*current) {
			return nil, domain.NewConflictError(
				fmt.Sprintf("latest_instance_date %s is before the current horizon %s",
					latest.Format(time.RFC3339), current.Format(time.RFC3339)),
				domain.ErrHorizonRegression).WithArgument("latest_instance_date")
		}
		if latest.Equal(*current) {
			return rule, nil
		}
	}

	if err := s.ruleRepository.AdvanceHorizon(ctx, rule.ID, current, latest); err != nil {
		if !errors.Is(err, domain.ErrHorizonMoved) {
			slog.ErrorContext(ctx, "error advancing horizon", logging.ErrKey, err, "rule_id", rule.ID)
		}
		return nil, err
	}

	rule.LatestInstanceDate = utils.Ptr(latest)
	rule.UpdatedAt = utils.Ptr(time.Now().UTC())

	slog.DebugContext(ctx, "advanced horizon", "rule_id", rule.ID, "latest_instance_date", latest)
	return rule, nil
}

func (s *RecurrenceRuleService) prepareTemplate(ctx context.Context, template *models.RecurringEventTemplate) error {
	if argument, err := template.Validate(); err != nil {
		slog.WarnContext(ctx, "invalid template", logging.ErrKey, err, "argument", argument)
		return domain.NewValidationError(err.Error()).WithArgument(argument)
	}

	now := time.Now().UTC()
	template.ID = newID()
	template.StartAt = utcSecond(template.StartAt)
	template.EndAt = utcSecond(template.EndAt)
	template.CreatedAt = &now
	template.UpdatedAt = &now
	return nil
}

// prepareRule fills inherited and generated fields and validates the result.
func (s *RecurrenceRuleService) prepareRule(rule *models.RecurrenceRule, template *models.RecurringEventTemplate) error {
	switch {
	case rule.OrganizationID == "":
		rule.OrganizationID = template.OrganizationID
	case rule.OrganizationID != template.OrganizationID:
		return domain.NewValidationError("rule organization does not match the template").WithArgument("organization_id")
	}
	if rule.CreatorID == "" {
		rule.CreatorID = template.CreatorID
	}
	if rule.RecurrenceStartDate.IsZero() {
		rule.RecurrenceStartDate = template.StartAt
	}

	rule.RecurrenceStartDate = utcSecond(rule.RecurrenceStartDate)
	if rule.RecurrenceEndDate != nil {
		end := utcSecond(*rule.RecurrenceEndDate)
		rule.RecurrenceEndDate = &end
	}

	if argument, err := rule.Validate(); err != nil {
		if argument == "frequency" {
			return domain.NewValidationError(err.Error(), domain.ErrUnsupportedFreq).WithArgument(argument)
		}
		return domain.NewValidationError(err.Error()).WithArgument(argument)
	}

	ruleString, err := s.occurrenceService.RuleString(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	// A series id always names exactly one rule; sequence numbers are
	// allocated per series.
	rule.ID = newID()
	rule.OriginalSeriesID = newID()
	rule.RecurrenceRuleString = ruleString
	rule.LatestInstanceDate = nil
	rule.CreatedAt = &now
	rule.UpdatedAt = &now
	return nil
}

// utcSecond is the canonical form of every timestamp the service stores.
func utcSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
