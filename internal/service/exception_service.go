// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

// ExceptionService applies per-instance exceptions: cancellation and
// rescheduling. Only platform administrators and administrators of the
// instance's organization may apply them.
type ExceptionService struct {
	instanceRepository domain.RecurringEventInstanceRepository
	directory          domain.OrganizationDirectory
	eventSender        domain.InstanceEventSender
}

// NewExceptionService creates a new ExceptionService. The event sender may be
// nil, in which case no change events are published.
func NewExceptionService(
	instanceRepository domain.RecurringEventInstanceRepository,
	directory domain.OrganizationDirectory,
	eventSender domain.InstanceEventSender,
) *ExceptionService {
	return &ExceptionService{
		instanceRepository: instanceRepository,
		directory:          directory,
		eventSender:        eventSender,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *ExceptionService) ServiceReady() bool {
	return s.instanceRepository != nil && s.directory != nil
}

// CancelInstance marks one instance as cancelled. Sibling instances are not touched.
func (s *ExceptionService) CancelInstance(ctx context.Context, instanceID, actorID string) (*models.RecurringEventInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if err := validateExceptionRequest(instanceID, actorID); err != nil {
		return nil, err
	}

	ctx = logging.AppendCtx(ctx, slog.String("instance_id", instanceID))
	ctx = logging.AppendCtx(ctx, slog.String("actor_id", actorID))

	instance, err := s.loadMutable(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, instance, actorID); err != nil {
		return nil, err
	}

	expectedVersion := instance.Version
	if !instance.Cancel(time.Now().UTC()) {
		return nil, alreadyCancelled(instanceID)
	}

	if err := s.instanceRepository.UpdateInstanceException(ctx, instance, expectedVersion); err != nil {
		slog.WarnContext(ctx, "error cancelling instance", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "cancelled instance",
		"original_series_id", instance.OriginalSeriesID,
		"original_instance_start_time", instance.OriginalInstanceStartTime,
	)

	if s.eventSender != nil {
		if err := s.eventSender.SendInstanceCancelled(ctx, changedMessage(instance, actorID)); err != nil {
			slog.WarnContext(ctx, "error sending instance cancelled message", logging.ErrKey, err)
		}
	}

	return instance, nil
}

// RescheduleInstance moves one instance. When only a new start is given the
// current duration is kept; when only a new end is given the start is kept.
func (s *ExceptionService) RescheduleInstance(ctx context.Context, instanceID string, newStart, newEnd *time.Time, actorID string) (*models.RecurringEventInstance, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized", domain.ErrServiceUnavailable)
	}
	if err := validateExceptionRequest(instanceID, actorID); err != nil {
		return nil, err
	}
	if newStart == nil && newEnd == nil {
		return nil, domain.NewValidationError("start_at or end_at is required", domain.ErrEmptyRescheduleSpan).WithArgument("start_at")
	}

	ctx = logging.AppendCtx(ctx, slog.String("instance_id", instanceID))
	ctx = logging.AppendCtx(ctx, slog.String("actor_id", actorID))

	instance, err := s.loadMutable(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, instance, actorID); err != nil {
		return nil, err
	}

	start, end := instance.ActualStartTime, instance.ActualEndTime
	switch {
	case newStart != nil && newEnd != nil:
		start, end = utcSecond(*newStart), utcSecond(*newEnd)
	case newStart != nil:
		duration := instance.ActualEndTime.Sub(instance.ActualStartTime)
		start = utcSecond(*newStart)
		end = start.Add(duration)
	default:
		end = utcSecond(*newEnd)
	}
	if !end.After(start) {
		return nil, domain.NewValidationError(
			fmt.Sprintf("end_at %s must be after start_at %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		).WithArgument("end_at")
	}

	expectedVersion := instance.Version
	if !instance.Reschedule(start, end, time.Now().UTC()) {
		return nil, alreadyCancelled(instanceID)
	}

	if err := s.instanceRepository.UpdateInstanceException(ctx, instance, expectedVersion); err != nil {
		slog.WarnContext(ctx, "error rescheduling instance", logging.ErrKey, err)
		return nil, err
	}

	slog.InfoContext(ctx, "rescheduled instance",
		"actual_start_time", instance.ActualStartTime,
		"actual_end_time", instance.ActualEndTime,
	)

	if s.eventSender != nil {
		if err := s.eventSender.SendInstanceRescheduled(ctx, changedMessage(instance, actorID)); err != nil {
			slog.WarnContext(ctx, "error sending instance rescheduled message", logging.ErrKey, err)
		}
	}

	return instance, nil
}

// loadMutable returns the instance if it exists and is not cancelled.
func (s *ExceptionService) loadMutable(ctx context.Context, instanceID string) (*models.RecurringEventInstance, error) {
	instance, err := s.instanceRepository.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.IsCancelled {
		return nil, alreadyCancelled(instanceID)
	}
	return instance, nil
}

func alreadyCancelled(instanceID string) error {
	return domain.NewConflictError(
		fmt.Sprintf("instance '%s' is already cancelled", instanceID),
		domain.ErrInstanceCancelled).WithArgument("instance_id")
}

// authorize allows platform administrators and administrators of the
// instance's organization.
func (s *ExceptionService) authorize(ctx context.Context, instance *models.RecurringEventInstance, actorID string) error {
	isAdmin, err := s.directory.IsPlatformAdministrator(ctx, actorID)
	if err != nil {
		slog.ErrorContext(ctx, "error checking platform role", logging.ErrKey, err)
		return err
	}
	if isAdmin {
		return nil
	}

	role, err := s.directory.MembershipRole(ctx, instance.OrganizationID, actorID)
	if err != nil {
		slog.ErrorContext(ctx, "error checking organization role", logging.ErrKey, err,
			"organization_id", instance.OrganizationID)
		return err
	}
	if role == models.MembershipRoleAdministrator {
		return nil
	}

	slog.WarnContext(ctx, "actor is not allowed to change instance",
		"organization_id", instance.OrganizationID, "role", role)
	return domain.NewUnauthorizedError(
		fmt.Sprintf("actor '%s' is not an administrator of organization '%s'", actorID, instance.OrganizationID),
		domain.ErrNotAdministrator).WithArgument("actor_id")
}

func validateExceptionRequest(instanceID, actorID string) error {
	if instanceID == "" {
		return domain.NewValidationError("instance_id is required").WithArgument("instance_id")
	}
	if actorID == "" {
		return domain.NewValidationError("actor_id is required").WithArgument("actor_id")
	}
	return nil
}

func changedMessage(instance *models.RecurringEventInstance, actorID string) models.InstanceChangedMessage {
	return models.InstanceChangedMessage{
		InstanceID:       instance.ID,
		OriginalSeriesID: instance.OriginalSeriesID,
		OrganizationID:   instance.OrganizationID,
		State:            instance.State(),
		ActualStartTime:  instance.ActualStartTime,
		ActualEndTime:    instance.ActualEndTime,
		Version:          instance.Version,
		ActorID:          actorID,
	}
}
