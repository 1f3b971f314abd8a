// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"strings"

	"github.com/nats-io/nats.go"
)

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// MembershipKey builds the encoded key of an organization membership
// (e.g. "<org>.<user>" with both parts encoded).
func (kb *KeyBuilder) MembershipKey(organizationID, userID string) string {
	return kb.encoded(organizationID, userID)
}

// UserKey builds the encoded key of a platform user.
func (kb *KeyBuilder) UserKey(userID string) string {
	return kb.encoded(userID)
}

func (kb *KeyBuilder) encoded(parts ...string) string {
	if kb.prefix != "" {
		parts = append([]string{kb.prefix}, parts...)
	}
	key, err := kb.EncodeKey(strings.Join(parts, "/"))
	if err != nil {
		return strings.Join(parts, ".")
	}
	return key
}

// EncodeKey encodes a key for NATS KV store. Every "/" separated part is
// base64url encoded so arbitrary ids only produce valid key tokens.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	res := []string{}
	for _, part := range strings.Split(strings.TrimPrefix(key, "/"), "/") {
		if part == "" {
			continue
		}
		res = append(res, base64.URLEncoding.EncodeToString([]byte(part)))
	}

	if len(res) == 0 {
		return "", nats.ErrInvalidKey
	}

	return strings.Join(res, "."), nil
}
