// Package config loads the runtime configuration of statechart services from
// YAML.
//
// Example:
//
//	queue:
//	  capacity: 1000
//	  shards: 4
//	  offer_timeout: 1s
//	  shutdown: drain
//	  shutdown_wait: 5s
//	timer:
//	  shutdown_wait: 1s
//	dispatch:
//	  max_completion_steps: 10000
//	logging:
//	  level: info
//	  json: false
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/eventqueue"
	"gopkg.in/yaml.v3"
)

// Config is the root of the runtime configuration
type Config struct {
	Queue    Queue    `yaml:"queue"`
	Timer    Timer    `yaml:"timer"`
	Dispatch Dispatch `yaml:"dispatch"`
	Logging  Logging  `yaml:"logging"`
}

// Queue configures the event queue
type Queue struct {
	Capacity     int           `yaml:"capacity"`
	Shards       int           `yaml:"shards"`
	OfferTimeout time.Duration `yaml:"offer_timeout"`
	Shutdown     string        `yaml:"shutdown"`
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

// Timer configures the timer manager
type Timer struct {
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

// Dispatch configures instances
type Dispatch struct {
	MaxCompletionSteps int `yaml:"max_completion_steps"`
}

// Logging configures the slog handler
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Queue: Queue{
			Capacity:     eventqueue.DefaultCapacity,
			Shards:       eventqueue.DefaultShards,
			OfferTimeout: eventqueue.DefaultOfferTimeout,
			Shutdown:     eventqueue.Drain.String(),
			ShutdownWait: 5 * time.Second,
		},
		Timer: Timer{
			ShutdownWait: time.Second,
		},
		Dispatch: Dispatch{
			MaxCompletionSteps: statechart.DefaultMaxCompletionSteps,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads and parses the file at path
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error

	if c.Queue.Capacity <= 0 {
		errs = append(errs, statechart.NewConfigurationError("queue.capacity", "must be positive"))
	}
	if c.Queue.Shards <= 0 {
		errs = append(errs, statechart.NewConfigurationError("queue.shards", "must be positive"))
	}
	if c.Queue.OfferTimeout <= 0 {
		errs = append(errs, statechart.NewConfigurationError("queue.offer_timeout", "must be positive"))
	}
	if _, err := eventqueue.ParsePolicy(c.Queue.Shutdown); err != nil {
		errs = append(errs, statechart.NewConfigurationError("queue.shutdown", err.Error()))
	}
	if c.Queue.ShutdownWait < 0 {
		errs = append(errs, statechart.NewConfigurationError("queue.shutdown_wait", "must not be negative"))
	}
	if c.Timer.ShutdownWait < 0 {
		errs = append(errs, statechart.NewConfigurationError("timer.shutdown_wait", "must not be negative"))
	}
	if c.Dispatch.MaxCompletionSteps <= 0 {
		errs = append(errs, statechart.NewConfigurationError("dispatch.max_completion_steps", "must be positive"))
	}
	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, statechart.NewConfigurationError("logging.level", err.Error()))
	}

	return errors.Join(errs...)
}

// Marshal encodes the configuration as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Options returns the event queue options of the configuration
func (q Queue) Options(logger *slog.Logger) []eventqueue.Option {
	policy, _ := eventqueue.ParsePolicy(q.Shutdown)
	return []eventqueue.Option{
		eventqueue.WithCapacity(q.Capacity),
		eventqueue.WithShards(q.Shards),
		eventqueue.WithOfferTimeout(q.OfferTimeout),
		eventqueue.WithShutdownPolicy(policy),
		eventqueue.WithLogger(logger),
	}
}

// InstanceOptions returns the instance options of the configuration
func (d Dispatch) InstanceOptions() []statechart.InstanceOption {
	return []statechart.InstanceOption{
		statechart.WithMaxCompletionSteps(d.MaxCompletionSteps),
	}
}

func (l Logging) level() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// Logger builds a text or JSON logger writing to w
func (l Logging) Logger(w io.Writer) *slog.Logger {
	level, _ := l.level()
	opts := &slog.HandlerOptions{Level: level}

	if l.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
