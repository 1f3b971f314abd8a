// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

var (
	_ domain.Message        = (*MockMessage)(nil)
	_ domain.MessageBuilder = (*MockMessageBuilder)(nil)
)

// MockMessage is an inbound message. Respond goes through the mock.
type MockMessage struct {
	mock.Mock
	subject string
	data    []byte
	reply   bool
}

// NewMockRequest returns a message whose sender waits for a reply.
func NewMockRequest(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data, reply: true}
}

// NewMockPublish returns a fire-and-forget message.
func NewMockPublish(subject string, data []byte) *MockMessage {
	return &MockMessage{subject: subject, data: data}
}

func (m *MockMessage) Subject() string { return m.subject }
func (m *MockMessage) Data() []byte    { return m.data }
func (m *MockMessage) HasReply() bool  { return m.reply }

func (m *MockMessage) Respond(data []byte) error {
	return m.Called(data).Error(0)
}

// MockMessageBuilder records outbound index and exception messages.
type MockMessageBuilder struct {
	mock.Mock
}

func (m *MockMessageBuilder) SendIndexRecurringEventInstance(ctx context.Context, action models.MessageAction, data models.ResolvedInstance) error {
	return m.Called(ctx, action, data).Error(0)
}

func (m *MockMessageBuilder) SendInstanceCancelled(ctx context.Context, data models.InstanceChangedMessage) error {
	return m.Called(ctx, data).Error(0)
}

func (m *MockMessageBuilder) SendInstanceRescheduled(ctx context.Context, data models.InstanceChangedMessage) error {
	return m.Called(ctx, data).Error(0)
}
