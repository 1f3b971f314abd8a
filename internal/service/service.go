// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// MaterializeMaxInstances caps the instances generated by one materialization call.
	MaterializeMaxInstances int
	// MaterializeWorkers bounds the rules materialized concurrently for an organization.
	MaterializeWorkers int
	// InstanceListLimit is the default limit of a range query.
	InstanceListLimit int
}

// DefaultServiceConfig returns the configuration used when nothing is overridden.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaterializeMaxInstances: constants.DefaultMaterializeMaxInstances,
		MaterializeWorkers:      constants.DefaultMaterializeWorkers,
		InstanceListLimit:       constants.DefaultInstanceListLimit,
	}
}

func (c ServiceConfig) maxInstances() int {
	if c.MaterializeMaxInstances <= 0 {
		return constants.DefaultMaterializeMaxInstances
	}
	return c.MaterializeMaxInstances
}

func (c ServiceConfig) workers() int {
	if c.MaterializeWorkers <= 0 {
		return constants.DefaultMaterializeWorkers
	}
	return c.MaterializeWorkers
}

func (c ServiceConfig) listLimit() int {
	if c.InstanceListLimit <= 0 {
		return constants.DefaultInstanceListLimit
	}
	return c.InstanceListLimit
}

// newID returns a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
