// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Relay configuration: defaults, file loading and validation. Files are
// YAML (.yaml, .yml) or TOML (.toml); keys absent from a file keep their
// default values.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/momentics/busrelay/bus"
	"github.com/momentics/busrelay/internal/concurrency"
	"github.com/momentics/busrelay/internal/logging"
	"github.com/momentics/busrelay/payload"
)

// Duration is a time.Duration written as a Go duration string ("10ms")
// in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Backoff parameters for reconnect and startup retries.
type Backoff struct {
	Initial Duration `yaml:"initial" toml:"initial"`
	Max     Duration `yaml:"max" toml:"max"`
	Factor  float64  `yaml:"factor" toml:"factor"`
	Jitter  float64  `yaml:"jitter" toml:"jitter"`
}

// New builds a backoff from the parameters.
func (b Backoff) New() *concurrency.Backoff {
	return concurrency.NewBackoff(b.Initial.Std(), b.Max.Std(), b.Factor, b.Jitter)
}

func (b Backoff) validate(name string) error {
	switch {
	case b.Initial <= 0:
		return fmt.Errorf("%s.initial must be positive", name)
	case b.Max < b.Initial:
		return fmt.Errorf("%s.max must be at least %s.initial", name, name)
	case b.Factor <= 1:
		return fmt.Errorf("%s.factor must be greater than 1", name)
	case b.Jitter < 0 || b.Jitter > 1:
		return fmt.Errorf("%s.jitter must be within [0, 1]", name)
	}
	return nil
}

// Bus configures the bus side.
type Bus struct {
	Socket       string   `yaml:"socket" toml:"socket"` // unix socket of the bus daemon
	Subscribe    string   `yaml:"subscribe" toml:"subscribe"`
	Publish      string   `yaml:"publish" toml:"publish"`
	PayloadField string   `yaml:"payload_field" toml:"payload_field"`
	StepInterval Duration `yaml:"step_interval" toml:"step_interval"`
	Reconnect    bool     `yaml:"reconnect" toml:"reconnect"`
	DialTimeout  Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	Backoff      Backoff  `yaml:"backoff" toml:"backoff"`
}

// Socket configures the TCP side.
type Socket struct {
	Host           string   `yaml:"host" toml:"host"`
	Port           int      `yaml:"port" toml:"port"`
	Retries        int      `yaml:"retries" toml:"retries"` // extra connect attempts
	RetryDelay     Duration `yaml:"retry_delay" toml:"retry_delay"`
	DialTimeout    Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	ReadBufferSize int      `yaml:"read_buffer_size" toml:"read_buffer_size"`
	IOTimeout      Duration `yaml:"io_timeout" toml:"io_timeout"`
	StepInterval   Duration `yaml:"step_interval" toml:"step_interval"`
	WriteDelimiter string   `yaml:"write_delimiter" toml:"write_delimiter"`
	SendTerminator bool     `yaml:"send_terminator" toml:"send_terminator"`
	Reconnect      bool     `yaml:"reconnect" toml:"reconnect"`
	Backoff        Backoff  `yaml:"backoff" toml:"backoff"`
}

// Addr returns host:port.
func (s Socket) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Reactor configures the event loop.
type Reactor struct {
	CPU int `yaml:"cpu" toml:"cpu"` // pin the loop thread to this CPU; -1 leaves it unpinned
}

// Config holds parameters immutable per run.
type Config struct {
	Bus       Bus      `yaml:"bus" toml:"bus"`
	Socket    Socket   `yaml:"socket" toml:"socket"`
	Reactor   Reactor  `yaml:"reactor" toml:"reactor"`
	Log       Log      `yaml:"log" toml:"log"`
	Heartbeat Duration `yaml:"heartbeat" toml:"heartbeat"` // periodic state log; 0 disables
	Startup   Backoff  `yaml:"startup" toml:"startup"`     // retry of a failed startup
}

// DefaultConfig returns the values the relay runs with when no file
// overrides them.
func DefaultConfig() *Config {
	return &Config{
		Bus: Bus{
			Socket:       bus.DefaultSocket,
			Subscribe:    "DS.GREENPOWER",
			Publish:      "DS.GATEWAY",
			PayloadField: payload.DefaultField,
			StepInterval: Duration(10 * time.Millisecond),
			Reconnect:    true,
			DialTimeout:  Duration(5 * time.Second),
			Backoff:      Backoff{Initial: Duration(time.Second), Max: Duration(time.Minute), Factor: 2, Jitter: 0.1},
		},
		Socket: Socket{
			Host:           "192.168.0.230",
			Port:           19000,
			Retries:        3,
			RetryDelay:     Duration(time.Second),
			DialTimeout:    Duration(5 * time.Second),
			ReadBufferSize: 1024,
			IOTimeout:      Duration(8 * time.Second),
			StepInterval:   Duration(10 * time.Millisecond),
			SendTerminator: true,
			Reconnect:      true,
			Backoff:        Backoff{Initial: Duration(time.Second), Max: Duration(time.Minute), Factor: 2, Jitter: 0.1},
		},
		Reactor: Reactor{CPU: -1},
		Log: Log{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Heartbeat: Duration(20 * time.Second),
		Startup:   Backoff{Initial: Duration(time.Second), Max: Duration(30 * time.Second), Factor: 2, Jitter: 0.1},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Bus.Socket == "":
		return errors.New("bus.socket is required")
	case c.Bus.Subscribe == "":
		return errors.New("bus.subscribe is required")
	case c.Bus.Publish == "":
		return errors.New("bus.publish is required")
	case c.Bus.PayloadField == "":
		return errors.New("bus.payload_field is required")
	case c.Bus.StepInterval <= 0:
		return errors.New("bus.step_interval must be positive")
	case c.Socket.Host == "":
		return errors.New("socket.host is required")
	case c.Socket.Port <= 0 || c.Socket.Port > 65535:
		return fmt.Errorf("socket.port %d out of range", c.Socket.Port)
	case c.Socket.Retries < 0:
		return errors.New("socket.retries must not be negative")
	case c.Socket.ReadBufferSize <= 0:
		return errors.New("socket.read_buffer_size must be positive")
	case c.Socket.IOTimeout <= 0:
		return errors.New("socket.io_timeout must be positive")
	case c.Socket.StepInterval <= 0:
		return errors.New("socket.step_interval must be positive")
	case c.Reactor.CPU < -1:
		return fmt.Errorf("reactor.cpu %d: want -1 or a CPU index", c.Reactor.CPU)
	case c.Heartbeat < 0:
		return errors.New("heartbeat must not be negative")
	}
	if err := c.Bus.Backoff.validate("bus.backoff"); err != nil {
		return err
	}
	if err := c.Socket.Backoff.validate("socket.backoff"); err != nil {
		return err
	}
	if err := c.Startup.validate("startup"); err != nil {
		return err
	}
	return c.LogOptions("").Validate()
}

// LogOptions returns the logger options for app.
func (c *Config) LogOptions(app string) logging.Options {
	return logging.Options{App: app, Level: c.Log.Level, Format: c.Log.Format}
}
