// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

const instrumentationName = "github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/service"

// MaterializerService turns recurrence rules into persisted instances up to a
// requested horizon.
type MaterializerService struct {
	templateRepository domain.TemplateRepository
	ruleRepository     domain.RecurrenceRuleRepository
	instanceRepository domain.RecurringEventInstanceRepository
	occurrenceService  domain.OccurrenceService
	messageBuilder     domain.InstanceIndexSender
	config             ServiceConfig

	materialized metric.Int64Counter
	conflicts    metric.Int64Counter
}

// NewMaterializerService creates a new MaterializerService. The message
// builder may be nil, in which case no indexer messages are sent.
func NewMaterializerService(
	templateRepository domain.TemplateRepository,
	ruleRepository domain.RecurrenceRuleRepository,
	instanceRepository domain.RecurringEventInstanceRepository,
	occurrenceService domain.OccurrenceService,
	messageBuilder domain.InstanceIndexSender,
	config ServiceConfig,
) *MaterializerService {
	meter := otel.Meter(instrumentationName)

	materialized, err := meter.Int64Counter(constants.MetricInstancesMaterialized,
		metric.WithDescription("Number of recurring event instances committed by the materializer"),
		metric.WithUnit("{instance}"),
	)
	if err != nil {
		slog.Warn("failed to create materialized instances counter", logging.ErrKey, err)
	}
	conflicts, err := meter.Int64Counter(constants.MetricMaterializeConflicts,
		metric.WithDescription("Number of materializations that lost a race with a concurrent writer"),
	)
	if err != nil {
		slog.Warn("failed to create materialize conflicts counter", logging.ErrKey, err)
	}

	return &MaterializerService{
		templateRepository: templateRepository,
		ruleRepository:     ruleRepository,
		instanceRepository: instanceRepository,
		occurrenceService:  occurrenceService,
		messageBuilder:     messageBuilder,
		config:             config,
		materialized:       materialized,
		conflicts:          conflicts,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *MaterializerService) ServiceReady() bool {
	return s.templateRepository != nil &&
		s.ruleRepository != nil &&
		s.instanceRepository != nil &&
		s.occurrenceService != nil
}

// Materialize generates and commits the instances of a rule whose original
// start lies after the rule's horizon and no later than until. A call that
// finds nothing to generate returns an empty slice and writes nothing.
//
// A lost race with a concurrent writer is returned as a retryable conflict;
// the caller decides whether to retry.
func (s *MaterializerService) Materialize(ctx context.Context, ruleID string, until time.Time) ([]*models.RecurringEventInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if ruleID == "" {
		return nil, domain.NewValidationError("rule_id is required").WithArgument("rule_id")
	}
	if until.IsZero() {
		return nil, domain.NewValidationError("until is required").WithArgument("until")
	}
	until = utcSecond(until)

	ctx = logging.AppendCtx(ctx, slog.String("rule_id", ruleID))
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "materializer.materialize",
		trace.WithAttributes(
			attribute.String("recurring_event.rule_id", ruleID),
			attribute.String("recurring_event.until", until.Format(time.RFC3339)),
		),
	)
	defer span.End()

	instances, err := s.materialize(ctx, ruleID, until)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if domain.IsRetryable(err) && s.conflicts != nil {
			s.conflicts.Add(ctx, 1)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("recurring_event.instances", len(instances)))
	return instances, nil
}

func (s *MaterializerService) materialize(ctx context.Context, ruleID string, until time.Time) ([]*models.RecurringEventInstance, error) {
	rule, err := s.ruleRepository.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if rule.LatestInstanceDate != nil && !until.After(*rule.LatestInstanceDate) {
		slog.DebugContext(ctx, "horizon already covers the requested date",
			"latest_instance_date", rule.LatestInstanceDate, "until", until)
		return []*models.RecurringEventInstance{}, nil
	}

	template, err := s.templateRepository.GetTemplate(ctx, rule.BaseRecurringEventID)
	if err != nil {
		slog.ErrorContext(ctx, "error getting template of rule", logging.ErrKey, err,
			"template_id", rule.BaseRecurringEventID)
		return nil, err
	}

	steps, err := s.occurrenceService.CalculateSteps(rule, rule.LatestInstanceDate, until, s.config.maxInstances())
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return []*models.RecurringEventInstance{}, nil
	}

	lastSequence, err := s.instanceRepository.MaxSequenceNumber(ctx, rule.OriginalSeriesID)
	if err != nil {
		return nil, err
	}

	instances := buildInstances(rule, template, steps, lastSequence, time.Now().UTC())

	if err := s.instanceRepository.CommitMaterialization(ctx, rule.ID, rule.LatestInstanceDate, instances); err != nil {
		if domain.IsRetryable(err) {
			slog.WarnContext(ctx, "materialization lost a concurrent race", logging.ErrKey, err)
		} else {
			slog.ErrorContext(ctx, "error committing materialization", logging.ErrKey, err)
		}
		return nil, err
	}

	if s.materialized != nil {
		s.materialized.Add(ctx, int64(len(instances)),
			metric.WithAttributes(attribute.String("organization_id", rule.OrganizationID)))
	}

	slog.InfoContext(ctx, "materialized instances",
		"count", len(instances),
		"first_sequence_number", instances[0].SequenceNumber,
		"latest_instance_date", instances[len(instances)-1].OriginalInstanceStartTime,
		"never_ending", rule.IsNeverEnding(),
	)

	s.sendIndexerMessages(ctx, instances, template)

	return instances, nil
}

// MaterializeOrganization materializes every rule of the organization. A
// failing rule does not stop the others; failures are returned per rule id.
func (s *MaterializerService) MaterializeOrganization(ctx context.Context, organizationID string, until time.Time) (map[string]int, map[string]error, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if organizationID == "" {
		return nil, nil, domain.NewValidationError("organization_id is required").WithArgument("organization_id")
	}

	ctx = logging.AppendCtx(ctx, slog.String("organization_id", organizationID))

	rules, err := s.ruleRepository.ListRulesByOrganization(ctx, organizationID)
	if err != nil {
		slog.ErrorContext(ctx, "error listing rules of organization", logging.ErrKey, err)
		return nil, nil, err
	}

	counts, errs := concurrent.Map(ctx, concurrent.NewWorkerPool(s.config.workers()), rules,
		func(ctx context.Context, rule *models.RecurrenceRule) (int, error) {
			instances, err := s.Materialize(ctx, rule.ID, until)
			return len(instances), err
		})

	generated := make(map[string]int, len(rules))
	failed := make(map[string]error)
	for i, rule := range rules {
		if errs[i] != nil {
			failed[rule.ID] = errs[i]
			continue
		}
		generated[rule.ID] = counts[i]
	}
	if len(failed) > 0 {
		slog.WarnContext(ctx, "some rules failed to materialize",
			"failed", len(failed), "rules", len(rules))
	}

	return generated, failed, nil
}

// buildInstances lays the template over each step. Sequence numbers continue
// after lastSequence.
func buildInstances(
	rule *models.RecurrenceRule,
	template *models.RecurringEventTemplate,
	steps []time.Time,
	lastSequence int,
	now time.Time,
) []*models.RecurringEventInstance {
	duration := template.Duration()
	instances := make([]*models.RecurringEventInstance, 0, len(steps))
	for i, step := range steps {
		instances = append(instances, &models.RecurringEventInstance{
			ID:                        newID(),
			BaseRecurringEventID:      template.ID,
			RecurrenceRuleID:          rule.ID,
			OriginalSeriesID:          rule.OriginalSeriesID,
			OrganizationID:            rule.OrganizationID,
			OriginalInstanceStartTime: step,
			ActualStartTime:           step,
			ActualEndTime:             step.Add(duration),
			SequenceNumber:            lastSequence + i + 1,
			Version:                   1,
			GeneratedAt:               now,
			LastUpdatedAt:             now,
		})
	}
	return instances
}

// sendIndexerMessages publishes the new instances for search indexing. Delivery
// is best effort; the instances are already committed.
func (s *MaterializerService) sendIndexerMessages(ctx context.Context, instances []*models.RecurringEventInstance, template *models.RecurringEventTemplate) {
	if s.messageBuilder == nil {
		return
	}

	tasks := make([]func() error, 0, len(instances))
	for _, instance := range instances {
		resolved := models.Resolve(instance, template)
		tasks = append(tasks, func() error {
			return s.messageBuilder.SendIndexRecurringEventInstance(ctx, models.ActionCreated, *resolved)
		})
	}

	errs := concurrent.NewWorkerPool(s.config.workers()).RunAll(ctx, tasks...)
	for _, err := range errs {
		slog.WarnContext(ctx, "error sending indexer message for instance", logging.ErrKey, err)
	}
}
