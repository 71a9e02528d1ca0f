// Package config loads and validates the host configuration: a YAML file
// checked against an embedded CUE schema, with environment overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/warrenerr"
)

//go:embed schema.cue
var schemaSource string

// Config is the resolved host configuration.
type Config struct {
	Listen     string
	Backend    Backend
	Metrics    Metrics
	AlarmPoll  time.Duration
	Namespaces map[string]Namespace
}

// Backend selects and addresses the storage backend.
type Backend struct {
	Driver backend.Driver
	DSN    string
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool
}

// Namespace is the forwarding configuration for one namespace.
type Namespace struct {
	BackendURL     string
	RequestTimeout time.Duration
}

// rawConfig mirrors the file layout. Durations are strings here so both
// YAML and the CUE schema see one representation; Load parses them.
type rawConfig struct {
	Listen  string `yaml:"listen" json:"listen" env:"WARREN_LISTEN"`
	Backend struct {
		Driver string `yaml:"driver" json:"driver" env:"WARREN_BACKEND_DRIVER"`
		DSN    string `yaml:"dsn" json:"dsn" env:"WARREN_BACKEND_DSN"`
	} `yaml:"backend" json:"backend"`
	Metrics struct {
		Enabled bool `yaml:"enabled" json:"enabled" env:"WARREN_METRICS_ENABLED"`
	} `yaml:"metrics" json:"metrics"`
	AlarmPollInterval string                  `yaml:"alarm_poll_interval" json:"alarm_poll_interval" env:"WARREN_ALARM_POLL_INTERVAL"`
	Namespaces        map[string]rawNamespace `yaml:"namespaces" json:"namespaces"`
}

type rawNamespace struct {
	BackendURL     string `yaml:"backend_url" json:"backend_url"`
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`
}

// Load reads the YAML file at path, applies WARREN_* environment
// overrides, validates the result against the embedded schema, and
// resolves defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, warrenerr.Wrap(warrenerr.CodeValidation, "parsing config", err)
	}
	if err := env.Parse(&raw); err != nil {
		return nil, warrenerr.Wrap(warrenerr.CodeValidation, "applying environment overrides", err)
	}
	applyDefaults(&raw)

	if err := validateRaw(&raw); err != nil {
		return nil, err
	}
	return resolve(&raw)
}

// Validate checks the YAML file at path against the embedded schema
// without resolving it. Errors carry file positions for reporting.
func Validate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	ctx := cuecontext.New()
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return warrenerr.Wrap(warrenerr.CodeValidation, "parsing config", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return validationError(err)
	}
	return checkAgainstSchema(ctx, value)
}

func applyDefaults(raw *rawConfig) {
	if raw.Listen == "" {
		raw.Listen = ":8474"
	}
	if raw.Backend.Driver == "" {
		raw.Backend.Driver = string(backend.DriverSQLite)
	}
	if raw.AlarmPollInterval == "" {
		raw.AlarmPollInterval = "1s"
	}
	if raw.Namespaces == nil {
		raw.Namespaces = map[string]rawNamespace{}
	}
	for name, ns := range raw.Namespaces {
		if ns.RequestTimeout == "" {
			ns.RequestTimeout = "30s"
			raw.Namespaces[name] = ns
		}
	}
}

func validateRaw(raw *rawConfig) error {
	ctx := cuecontext.New()
	value := ctx.Encode(raw, cue.NilIsAny(false))
	if err := value.Err(); err != nil {
		return validationError(err)
	}
	return checkAgainstSchema(ctx, value)
}

func checkAgainstSchema(ctx *cue.Context, value cue.Value) error {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config schema missing #Config: %w", err)
	}
	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError flattens CUE's error list into one coded error, keeping
// positions in the message.
func validationError(err error) error {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msgs = append(msgs, cueerrors.Details(e, nil))
	}
	if len(msgs) == 0 {
		msgs = append(msgs, err.Error())
	}
	out := msgs[0]
	for _, m := range msgs[1:] {
		out += "\n" + m
	}
	return warrenerr.New(warrenerr.CodeValidation, out)
}

func resolve(raw *rawConfig) (*Config, error) {
	poll, err := time.ParseDuration(raw.AlarmPollInterval)
	if err != nil {
		return nil, warrenerr.Newf(warrenerr.CodeValidation,
			"alarm_poll_interval: %v", err)
	}
	cfg := &Config{
		Listen: raw.Listen,
		Backend: Backend{
			Driver: backend.Driver(raw.Backend.Driver),
			DSN:    raw.Backend.DSN,
		},
		Metrics:    Metrics{Enabled: raw.Metrics.Enabled},
		AlarmPoll:  poll,
		Namespaces: make(map[string]Namespace, len(raw.Namespaces)),
	}
	for name, ns := range raw.Namespaces {
		timeout, err := time.ParseDuration(ns.RequestTimeout)
		if err != nil {
			return nil, warrenerr.Newf(warrenerr.CodeValidation,
				"namespaces.%s.request_timeout: %v", name, err)
		}
		cfg.Namespaces[name] = Namespace{
			BackendURL:     ns.BackendURL,
			RequestTimeout: timeout,
		}
	}
	return cfg, nil
}
