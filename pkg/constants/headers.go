// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Header names carried on NATS requests and HTTP probes.
const (
	AuthorizationHeader = "authorization"
	XOnBehalfOfHeader   = "x-on-behalf-of"
	RequestIDHeader     = "X-REQUEST-ID"
)

// Probe paths served by the health listener.
const (
	LivenessPath  = "/livez"
	ReadinessPath = "/readyz"
)

type contextKey string

// Context keys for values lifted off inbound headers.
const (
	RequestIDContextID     contextKey = RequestIDHeader
	AuthorizationContextID contextKey = AuthorizationHeader
	PrincipalContextID     contextKey = XOnBehalfOfHeader
)

// ContextHeaders pairs each propagated context key with the header it travels in.
var ContextHeaders = map[contextKey]string{
	AuthorizationContextID: AuthorizationHeader,
	PrincipalContextID:     XOnBehalfOfHeader,
}
