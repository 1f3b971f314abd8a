// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/infrastructure/calendar"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

// RecurringEventHandler answers the request/reply subjects of the service.
type RecurringEventHandler struct {
	ruleService         *service.RecurrenceRuleService
	materializerService *service.MaterializerService
	exceptionService    *service.ExceptionService
	queryService        *service.InstanceQueryService
	maxAttempts         int
}

// NewRecurringEventHandler creates a new RecurringEventHandler. maxAttempts
// bounds how often a materialize request is tried after losing a race.
func NewRecurringEventHandler(
	ruleService *service.RecurrenceRuleService,
	materializerService *service.MaterializerService,
	exceptionService *service.ExceptionService,
	queryService *service.InstanceQueryService,
	maxAttempts int,
) *RecurringEventHandler {
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaterializeMaxAttempts
	}
	return &RecurringEventHandler{
		ruleService:         ruleService,
		materializerService: materializerService,
		exceptionService:    exceptionService,
		queryService:        queryService,
		maxAttempts:         maxAttempts,
	}
}

func (h *RecurringEventHandler) HandlerReady() bool {
	return h.ruleService.ServiceReady() &&
		h.materializerService.ServiceReady() &&
		h.exceptionService.ServiceReady() &&
		h.queryService.ServiceReady()
}

type route func(ctx context.Context, msg domain.Message) (any, error)

func (h *RecurringEventHandler) routes() map[string]route {
	return map[string]route{
		models.CreateTemplateSubject:          h.HandleCreateTemplate,
		models.CreateRuleSubject:              h.HandleCreateRule,
		models.CreateSeriesSubject:            h.HandleCreateSeries,
		models.GetRuleSubject:                 h.HandleGetRule,
		models.GetRuleByTemplateSubject:       h.HandleGetRuleByTemplate,
		models.AdvanceHorizonSubject:          h.HandleAdvanceHorizon,
		models.MaterializeSubject:             h.HandleMaterialize,
		models.MaterializeOrganizationSubject: h.HandleMaterializeOrganization,
		models.CancelInstanceSubject:          h.HandleCancelInstance,
		models.RescheduleInstanceSubject:      h.HandleRescheduleInstance,
		models.GetInstanceSubject:             h.HandleGetInstance,
		models.GetInstancesSubject:            h.HandleGetInstances,
		models.ListInstancesSubject:           h.HandleListInstances,
		models.ResolveReferenceSubject:        h.HandleResolveReference,
		models.ExportCalendarSubject:          h.HandleExportCalendar,
	}
}

// Subjects returns the request subjects the handler answers, sorted.
func (h *RecurringEventHandler) Subjects() []string {
	subjects := make([]string, 0, len(h.routes()))
	for subject := range h.routes() {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// HandleMessage implements domain.MessageHandler interface
func (h *RecurringEventHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handler, ok := h.routes()[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		if msg.HasReply() {
			if err := msg.Respond(nil); err != nil {
				slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
			}
		}
		return
	}

	var reply models.Reply
	data, err := handler(ctx, msg)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeInternal {
			slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		} else {
			slog.WarnContext(ctx, "request rejected", logging.ErrKey, err)
		}
		reply.Error = replyError(err)
	} else {
		reply.Data = data
	}

	if !msg.HasReply() {
		slog.DebugContext(ctx, "handled NATS message (no reply expected)")
		return
	}

	response, err := json.Marshal(reply)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling reply", logging.ErrKey, err)
		response, _ = json.Marshal(models.Reply{Error: replyError(domain.NewInternalError("failed to encode reply", err))})
	}
	if err := msg.Respond(response); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "bytes", len(response))
}

func (h *RecurringEventHandler) HandleCreateTemplate(ctx context.Context, msg domain.Message) (any, error) {
	var template models.RecurringEventTemplate
	if err := decode(msg, &template); err != nil {
		return nil, err
	}
	return h.ruleService.CreateTemplate(ctx, &template)
}

func (h *RecurringEventHandler) HandleCreateRule(ctx context.Context, msg domain.Message) (any, error) {
	var rule models.RecurrenceRule
	if err := decode(msg, &rule); err != nil {
		return nil, err
	}
	return h.ruleService.Create(ctx, &rule)
}

func (h *RecurringEventHandler) HandleCreateSeries(ctx context.Context, msg domain.Message) (any, error) {
	var req models.CreateSeriesRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	template, rule, err := h.ruleService.CreateSeries(ctx, &req.Template, &req.Rule)
	if err != nil {
		return nil, err
	}
	return models.CreateSeriesResponse{Template: template, Rule: rule}, nil
}

func (h *RecurringEventHandler) HandleGetRule(ctx context.Context, msg domain.Message) (any, error) {
	var req models.RuleRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.ruleService.Get(ctx, req.RuleID)
}

func (h *RecurringEventHandler) HandleGetRuleByTemplate(ctx context.Context, msg domain.Message) (any, error) {
	var req models.RuleRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.ruleService.GetByTemplate(ctx, req.TemplateID)
}

func (h *RecurringEventHandler) HandleAdvanceHorizon(ctx context.Context, msg domain.Message) (any, error) {
	var req models.AdvanceHorizonRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.ruleService.AdvanceHorizon(ctx, req.RuleID, req.LatestInstanceDate)
}

// HandleMaterialize retries a materialization that lost a race with a
// concurrent writer. Each attempt re-reads the rule.
func (h *RecurringEventHandler) HandleMaterialize(ctx context.Context, msg domain.Message) (any, error) {
	var req models.MaterializeRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	ctx = logging.AppendCtx(ctx, slog.String("rule_id", req.RuleID))

	var err error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		var instances []*models.RecurringEventInstance
		instances, err = h.materializerService.Materialize(ctx, req.RuleID, req.Until)
		if err == nil {
			return models.MaterializeResponse{Instances: instances, Attempts: attempt}, nil
		}
		if !domain.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "retrying materialization", "attempt", attempt, logging.ErrKey, err)
	}

	slog.WarnContext(ctx, "materialization kept conflicting", "attempts", h.maxAttempts)
	return nil, err
}

func (h *RecurringEventHandler) HandleMaterializeOrganization(ctx context.Context, msg domain.Message) (any, error) {
	var req models.MaterializeOrganizationRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}

	generated, failed, err := h.materializerService.MaterializeOrganization(ctx, req.OrganizationID, req.Until)
	if err != nil {
		return nil, err
	}

	response := models.MaterializeOrganizationResponse{Generated: generated}
	if len(failed) > 0 {
		response.Failed = make(map[string]string, len(failed))
		for ruleID, ruleErr := range failed {
			response.Failed[ruleID] = ruleErr.Error()
		}
	}
	return response, nil
}

func (h *RecurringEventHandler) HandleCancelInstance(ctx context.Context, msg domain.Message) (any, error) {
	var req models.CancelInstanceRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.exceptionService.CancelInstance(ctx, req.InstanceID, req.ActorID)
}

func (h *RecurringEventHandler) HandleRescheduleInstance(ctx context.Context, msg domain.Message) (any, error) {
	var req models.RescheduleInstanceRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.exceptionService.RescheduleInstance(ctx, req.InstanceID, req.StartAt, req.EndAt, req.ActorID)
}

func (h *RecurringEventHandler) HandleGetInstance(ctx context.Context, msg domain.Message) (any, error) {
	var req models.InstanceRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.queryService.GetInstance(ctx, req.InstanceID)
}

func (h *RecurringEventHandler) HandleGetInstances(ctx context.Context, msg domain.Message) (any, error) {
	var req models.InstancesRequest
	if err := decode(msg, &req); err != nil {
		return nil, err
	}
	return h.queryService.GetInstancesByIDs(ctx, req.InstanceIDs)
}

func (h *RecurringEventHandler) HandleListInstances(ctx context.Context, msg domain.Message) (any, error) {
	var filter models.InstanceFilter
	if err := decode(msg, &filter); err != nil {
		return nil, err
	}
	return h.queryService.ListInstancesInRange(ctx, filter)
}

func (h *RecurringEventHandler) HandleResolveReference(ctx context.Context, msg domain.Message) (any, error) {
	var ref models.EventReference
	if err := decode(msg, &ref); err != nil {
		return nil, err
	}
	return h.queryService.ResolveReference(ctx, ref)
}

// HandleExportCalendar renders the instances a range query selects as iCalendar.
func (h *RecurringEventHandler) HandleExportCalendar(ctx context.Context, msg domain.Message) (any, error) {
	var filter models.InstanceFilter
	if err := decode(msg, &filter); err != nil {
		return nil, err
	}
	instances, err := h.queryService.ListInstancesInRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	return models.CalendarExport{
		ContentType: calendar.ContentType,
		Calendar:    calendar.Render(instances, time.Now()),
	}, nil
}

func decode(msg domain.Message, v any) error {
	if err := json.Unmarshal(msg.Data(), v); err != nil {
		return domain.NewValidationError("invalid request payload", err).WithArgument("payload")
	}
	return nil
}

// replyError maps an error onto the reply envelope. Internal causes are not
// exposed to the caller.
func replyError(err error) *models.ReplyError {
	message := err.Error()
	if domain.GetErrorType(err) == domain.ErrorTypeInternal {
		message = "internal error"
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			message = domainErr.Message
		}
	}
	return &models.ReplyError{
		Type:      domain.GetErrorType(err).String(),
		Message:   message,
		Argument:  domain.GetArgument(err),
		Retryable: domain.IsRetryable(err),
	}
}
