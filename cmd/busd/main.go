// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// busd runs the minimal bus broker busrelay connects to when no host
// bus daemon is present.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/momentics/busrelay/bus"
	"github.com/momentics/busrelay/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "busd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("busd", pflag.ContinueOnError)
	socket := flags.StringP("socket", "s", bus.DefaultSocket, "unix socket to listen on")
	logLevel := flags.String("log-level", "info", "log level")
	logFormat := flags.String("log-format", logging.FormatConsole, "log format (console or json)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log, err := logging.New(logging.Options{App: "busd", Level: *logLevel, Format: *logFormat})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, err := bus.Listen(*socket, log)
	if err != nil {
		return err
	}
	log.Info().Str("socket", broker.Addr()).Msg("bus broker listening")
	return broker.Serve(ctx)
}
