// File: internal/logging/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options control logger construction.
type Options struct {
	App    string
	Level  string // zerolog level name; empty means info
	Format string // FormatConsole or FormatJSON
	Out    io.Writer
}

// Validate checks the level and format without building a logger.
func (o Options) Validate() error {
	if _, err := o.level(); err != nil {
		return err
	}
	switch o.Format {
	case "", FormatConsole, FormatJSON:
		return nil
	}
	return fmt.Errorf("log format %q: want %s or %s", o.Format, FormatConsole, FormatJSON)
}

func (o Options) level() (zerolog.Level, error) {
	if o.Level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(o.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", o.Level, err)
	}
	return l, nil
}

// New returns a logger tagged with the app name and installs it as the
// global zerolog logger.
func New(opts Options) (zerolog.Logger, error) {
	if err := opts.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	level, _ := opts.level()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", opts.App).Logger()
	log.Logger = logger
	return logger, nil
}
