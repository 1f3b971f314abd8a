// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// InstanceIndexSender handles indexing operations for recurring event instances.
type InstanceIndexSender interface {
	SendIndexRecurringEventInstance(ctx context.Context, action models.MessageAction, data models.ResolvedInstance) error
}

// InstanceEventSender handles instance exception events.
type InstanceEventSender interface {
	SendInstanceCancelled(ctx context.Context, data models.InstanceChangedMessage) error
	SendInstanceRescheduled(ctx context.Context, data models.InstanceChangedMessage) error
}

// MessageBuilder composes all outbound messaging capabilities.
type MessageBuilder interface {
	InstanceIndexSender
	InstanceEventSender
}
