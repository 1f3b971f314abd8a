// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

// InstanceQueryService answers reads of materialized instances. Every result
// carries the attributes the instance inherits from its template.
type InstanceQueryService struct {
	instanceRepository domain.RecurringEventInstanceRepository
	templateRepository domain.TemplateRepository
	config             ServiceConfig
}

// NewInstanceQueryService creates a new InstanceQueryService.
func NewInstanceQueryService(
	instanceRepository domain.RecurringEventInstanceRepository,
	templateRepository domain.TemplateRepository,
	config ServiceConfig,
) *InstanceQueryService {
	return &InstanceQueryService{
		instanceRepository: instanceRepository,
		templateRepository: templateRepository,
		config:             config,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *InstanceQueryService) ServiceReady() bool {
	return s.instanceRepository != nil && s.templateRepository != nil
}

// GetInstance returns an instance whether or not it is cancelled.
func (s *InstanceQueryService) GetInstance(ctx context.Context, instanceID string) (*models.ResolvedInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if instanceID == "" {
		return nil, domain.NewValidationError("instance_id is required").WithArgument("instance_id")
	}

	instance, err := s.instanceRepository.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolve(ctx, []*models.RecurringEventInstance{instance})
	if err != nil {
		return nil, err
	}
	return resolved[0], nil
}

// GetInstancesByIDs returns the known instances among ids.
func (s *InstanceQueryService) GetInstancesByIDs(ctx context.Context, instanceIDs []string) ([]*models.ResolvedInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}

	instances, err := s.instanceRepository.GetInstancesByIDs(ctx, instanceIDs)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, instances)
}

// ListInstancesInRange returns the organization's instances whose actual start
// lies in [filter.StartDate, filter.EndDate].
func (s *InstanceQueryService) ListInstancesInRange(ctx context.Context, filter models.InstanceFilter) ([]*models.ResolvedInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if argument, err := filter.Validate(); err != nil {
		return nil, domain.NewValidationError(err.Error()).WithArgument(argument)
	}
	if filter.Limit == 0 {
		filter.Limit = s.config.listLimit()
	}
	filter.StartDate = utcSecond(filter.StartDate)
	filter.EndDate = utcSecond(filter.EndDate)

	instances, err := s.instanceRepository.ListInstancesInRange(ctx, filter)
	if err != nil {
		slog.ErrorContext(ctx, "error listing instances", logging.ErrKey, err,
			"organization_id", filter.OrganizationID)
		return nil, err
	}
	return s.resolve(ctx, instances)
}

// ResolveReference returns what an event reference points at: a standalone
// event or one recurring instance. Recurring templates cannot be referenced.
func (s *InstanceQueryService) ResolveReference(ctx context.Context, ref models.EventReference) (*models.ResolvedReference, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if !ref.Valid() {
		return nil, domain.NewValidationError("invalid event reference", domain.ErrAmbiguousReference).WithArgument("event_id")
	}

	if ref.IsInstance() {
		instance, err := s.GetInstance(ctx, ref.RecurringEventInstanceID)
		if err != nil {
			return nil, err
		}
		return &models.ResolvedReference{Instance: instance}, nil
	}

	event, err := s.templateRepository.GetTemplate(ctx, ref.EventID)
	if err != nil {
		return nil, err
	}
	if event.IsRecurringTemplate {
		return nil, domain.NewValidationError(
			fmt.Sprintf("event '%s' is a recurring template; reference one of its instances", event.ID),
		).WithArgument("event_id")
	}
	return &models.ResolvedReference{Event: event}, nil
}

// resolve joins instances with their templates, fetching each template once.
func (s *InstanceQueryService) resolve(ctx context.Context, instances []*models.RecurringEventInstance) ([]*models.ResolvedInstance, error) {
	templates := make(map[string]*models.RecurringEventTemplate)
	resolved := make([]*models.ResolvedInstance, 0, len(instances))
	for _, instance := range instances {
		template, ok := templates[instance.BaseRecurringEventID]
		if !ok {
			var err error
			template, err = s.templateRepository.GetTemplate(ctx, instance.BaseRecurringEventID)
			if err != nil {
				slog.ErrorContext(ctx, "error getting template of instance", logging.ErrKey, err,
					"instance_id", instance.ID, "template_id", instance.BaseRecurringEventID)
				return nil, err
			}
			templates[instance.BaseRecurringEventID] = template
		}
		resolved = append(resolved, models.Resolve(instance, template))
	}
	return resolved, nil
}
