// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
)

// startupCleanup releases what startup acquired when a later step fails.
// Once the service is running, gracefulShutdown owns the same resources.
type startupCleanup []func(context.Context) error

func (c *startupCleanup) add(fn func(context.Context) error) {
	*c = append(*c, fn)
}

// run calls the registered functions in reverse order and joins their errors.
func (c startupCleanup) run(ctx context.Context) error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = errors.Join(err, c[i](ctx))
	}
	return err
}

// abort logs the startup failure and releases everything acquired so far.
func (c startupCleanup) abort(ctx context.Context, msg string, cause error) {
	slog.With(logging.ErrKey, cause).Error(msg)
	ctx, cancel := context.WithTimeout(ctx, gracefulShutdownSeconds*time.Second)
	defer cancel()
	if err := c.run(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error releasing startup resources")
	}
}
