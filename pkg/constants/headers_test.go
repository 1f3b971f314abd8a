// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeysFollowHeaders(t *testing.T) {
	assert.Equal(t, RequestIDHeader, string(RequestIDContextID))
	assert.Equal(t, AuthorizationHeader, string(AuthorizationContextID))
	assert.Equal(t, XOnBehalfOfHeader, string(PrincipalContextID))

	for key, header := range ContextHeaders {
		assert.Equal(t, header, string(key))
	}
	assert.NotContains(t, ContextHeaders, RequestIDContextID, "request ids are minted per hop")
}

func TestContextKeysDoNotCollideWithStrings(t *testing.T) {
	var plain any = "authorization"
	var typed any = AuthorizationContextID
	assert.NotEqual(t, plain, typed)
}

func TestProbePaths(t *testing.T) {
	assert.NotEqual(t, LivenessPath, ReadinessPath)
	for _, path := range []string{LivenessPath, ReadinessPath} {
		assert.Regexp(t, `^/[a-z]+$`, path)
	}
}

func TestRecurrenceDefaults(t *testing.T) {
	assert.Positive(t, DefaultMaterializeMaxInstances)
	assert.Positive(t, DefaultMaterializeMaxAttempts)
	assert.Positive(t, DefaultMaterializeWorkers)
	assert.Positive(t, DefaultInstanceListLimit)
	assert.NotEqual(t, MetricInstancesMaterialized, MetricMaterializeConflicts)
}
