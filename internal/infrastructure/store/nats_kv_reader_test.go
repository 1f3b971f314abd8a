// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/domain/models"
)

func TestKVReader_Get(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*mockNatsKeyValue)
		nilBucket    bool
		wantErr      bool
		expectedType domain.ErrorType
		expectedRole models.UserRole
	}{
		{
			name: "decodes the stored record",
			setup: func(kv *mockNatsKeyValue) {
				kv.put("user-1", []byte(`{"id":"user-1","role":"administrator"}`))
			},
			expectedRole: models.UserRoleAdministrator,
		},
		{
			name:         "missing key",
			setup:        func(*mockNatsKeyValue) {},
			wantErr:      true,
			expectedType: domain.ErrorTypeNotFound,
		},
		{
			name: "bucket failure",
			setup: func(kv *mockNatsKeyValue) {
				kv.getError = errors.New("nats: timeout")
			},
			wantErr:      true,
			expectedType: domain.ErrorTypeUnavailable,
		},
		{
			name: "malformed record",
			setup: func(kv *mockNatsKeyValue) {
				kv.put("user-1", []byte(`{"id":`))
			},
			wantErr:      true,
			expectedType: domain.ErrorTypeInternal,
		},
		{
			name:         "no bucket",
			setup:        func(*mockNatsKeyValue) {},
			nilBucket:    true,
			wantErr:      true,
			expectedType: domain.ErrorTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMockNatsKeyValue()
			tt.setup(kv)

			reader := newKVReader[models.User](kv, "user")
			if tt.nilBucket {
				reader = newKVReader[models.User](nil, "user")
			}

			user, err := reader.get(context.Background(), "user-1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, user)
				assert.Equal(t, tt.expectedType, domain.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", user.ID)
			assert.Equal(t, tt.expectedRole, user.Role)
		})
	}
}
