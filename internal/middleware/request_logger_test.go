// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		requestID     string
		handlerStatus int
	}{
		{
			name:          "generates a request id",
			path:          "/readyz",
			handlerStatus: http.StatusOK,
		},
		{
			name:          "keeps the caller's request id",
			path:          "/readyz",
			requestID:     "req-123",
			handlerStatus: http.StatusServiceUnavailable,
		},
		{
			name:          "logged path",
			path:          "/other",
			requestID:     "req-456",
			handlerStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenID any
			handler := RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenID = r.Context().Value(constants.RequestIDContextID)
				w.WriteHeader(tt.handlerStatus)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set(constants.RequestIDHeader, tt.requestID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.handlerStatus, rec.Code)
			responseID := rec.Header().Get(constants.RequestIDHeader)
			assert.NotEmpty(t, responseID)
			assert.Equal(t, responseID, seenID)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, responseID)
			}
		})
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, err := ww.Write([]byte("ok"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, ww.statusCode)
}

func TestRequestAttrs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz?verbose=1", nil)
	req.Header.Set("User-Agent", "kube-probe/1.30")

	attrs := map[string]string{}
	for _, attr := range requestAttrs(req, "req-1") {
		attrs[attr.Key] = attr.Value.String()
	}

	assert.Equal(t, "req-1", attrs["request_id"])
	assert.Equal(t, http.MethodGet, attrs["method"])
	assert.Equal(t, "/readyz", attrs["path"])
	assert.Equal(t, "verbose=1", attrs["query"])
	assert.Equal(t, "kube-probe/1.30", attrs["user_agent"])
	assert.Contains(t, attrs, "remote_addr")
}

func TestQuietPaths(t *testing.T) {
	assert.True(t, quietPaths[constants.LivenessPath])
	assert.True(t, quietPaths[constants.ReadinessPath])
	assert.False(t, quietPaths["/other"])
}
