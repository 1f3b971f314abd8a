// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-recurring-event-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-recurring-event-service/pkg/utils"
)

const (
	defaultPort        = "8080"
	defaultNatsURL     = "nats://localhost:4222"
	defaultDatabaseURL = "file:recurring-events.db?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
)

// flags are the command line flags for the recurring event service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the recurring event service.
type environment struct {
	Port        string
	NatsURL     string
	DatabaseURL string
	// MaterializeMaxInstances caps the instances one materialize call generates.
	MaterializeMaxInstances int
	// MaterializeMaxAttempts bounds the retries of a materialize request that
	// lost a race.
	MaterializeMaxAttempts int
	MaterializeWorkers     int
}

// parseFlags parses command line flags for the recurring event service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the recurring event service
func parseEnv() environment {
	return environment{
		Port:                    utils.Coalesce(os.Getenv("PORT"), defaultPort),
		NatsURL:                 utils.Coalesce(os.Getenv("NATS_URL"), defaultNatsURL),
		DatabaseURL:             utils.Coalesce(os.Getenv("DATABASE_URL"), defaultDatabaseURL),
		MaterializeMaxInstances: positiveIntEnv("MATERIALIZE_MAX_INSTANCES", constants.DefaultMaterializeMaxInstances),
		MaterializeMaxAttempts:  positiveIntEnv("MATERIALIZE_MAX_ATTEMPTS", constants.DefaultMaterializeMaxAttempts),
		MaterializeWorkers:      positiveIntEnv("MATERIALIZE_WORKERS", constants.DefaultMaterializeWorkers),
	}
}

// positiveIntEnv reads a positive integer, falling back to the default when the
// variable is unset or invalid.
func positiveIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		slog.With("key", key, "value", raw, "default", fallback).Warn("invalid positive integer, using default")
		return fallback
	}
	return value
}
