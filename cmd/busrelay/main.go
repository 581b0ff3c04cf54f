// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// busrelay bridges a local bus and a TCP peer: events on the subscribe
// channel are written to the peer, lines from the peer are published on
// the publish channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/momentics/busrelay/config"
	"github.com/momentics/busrelay/facade"
	"github.com/momentics/busrelay/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "busrelay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("busrelay", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "config file (.yaml, .yml or .toml)")
	busSocket := flags.String("bus-socket", "", "bus daemon unix socket")
	host := flags.String("host", "", "TCP peer host")
	port := flags.Int("port", 0, "TCP peer port")
	logLevel := flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	logFormat := flags.String("log-format", "", "log format (console or json)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Changed("bus-socket") {
		cfg.Bus.Socket = *busSocket
	}
	if flags.Changed("host") {
		cfg.Socket.Host = *host
	}
	if flags.Changed("port") {
		cfg.Socket.Port = *port
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogOptions("busrelay"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := facade.New(cfg, facade.Options{Log: log})
	if err != nil {
		return err
	}
	if err := startWithRetry(ctx, r, cfg, log); err != nil {
		_ = r.Shutdown()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	runErr := r.Run(ctx)
	if err := r.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	return runErr
}

// startWithRetry keeps trying to bring both relays up until ctx ends.
func startWithRetry(ctx context.Context, r *facade.Relay, cfg *config.Config, log zerolog.Logger) error {
	backoff := cfg.Startup.New()
	for {
		err := r.Start(ctx)
		if err == nil {
			return nil
		}
		wait := backoff.Next()
		log.Error().Err(err).Int("attempt", backoff.Attempts()).Dur("retry_in", wait).Msg("relay start failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
