// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// initLogger writes human-readable logs to stderr so stdout stays free for frame output.
func initLogger(level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	l := zerolog.New(output).Level(level).With().Timestamp().Str("app", "meshstat").Logger()
	log.Logger = l
	return l
}
