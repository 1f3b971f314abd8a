// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

// NatsMessage adapts a [nats.Msg] to the domain.Message interface.
type NatsMessage struct {
	msg *nats.Msg
}

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

func (m *NatsMessage) Subject() string {
	return m.msg.Subject
}

func (m *NatsMessage) Data() []byte {
	return m.msg.Data
}

// Respond replies to the request. It fails when the message has no reply subject.
func (m *NatsMessage) Respond(data []byte) error {
	return m.msg.Respond(data)
}

func (m *NatsMessage) HasReply() bool {
	return m.msg.Reply != ""
}

// Context derives the request context from the message headers: the caller's
// trace context, authorization and principal.
func (m *NatsMessage) Context(parent context.Context) context.Context {
	if len(m.msg.Header) == 0 {
		return parent
	}

	ctx := otel.GetTextMapPropagator().Extract(parent, propagation.HeaderCarrier(m.msg.Header))
	for key, header := range constants.ContextHeaders {
		if value := m.msg.Header.Get(header); value != "" {
			ctx = context.WithValue(ctx, key, value)
		}
	}
	return ctx
}
