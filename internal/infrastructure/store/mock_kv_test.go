// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// kvEntry is a stored bucket value.
type kvEntry struct {
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e kvEntry) Bucket() string                  { return "directory-test" }
func (e kvEntry) Key() string                     { return e.key }
func (e kvEntry) Value() []byte                   { return e.value }
func (e kvEntry) Revision() uint64                { return e.revision }
func (e kvEntry) Created() time.Time              { return e.created }
func (e kvEntry) Delta() uint64                   { return 0 }
func (e kvEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// mockNatsKeyValue is an in-memory bucket. getError, when set, fails every read.
type mockNatsKeyValue struct {
	entries  map[string]kvEntry
	getError error
}

func newMockNatsKeyValue() *mockNatsKeyValue {
	return &mockNatsKeyValue{entries: make(map[string]kvEntry)}
}

func (m *mockNatsKeyValue) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return entry, nil
}

// put stores a value the way a directory writer would, bumping the revision.
func (m *mockNatsKeyValue) put(key string, value []byte) {
	m.entries[key] = kvEntry{
		key:      key,
		value:    value,
		revision: m.entries[key].revision + 1,
		created:  time.Now(),
	}
}
