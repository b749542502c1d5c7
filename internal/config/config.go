// Package config resolves harness settings from defaults, a config file and
// ROUNDTRIP_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/payload"
	"github.com/studiowebux/roundtrip/internal/probe"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "ROUNDTRIP_"

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Settings represents the harness configuration
type Settings struct {
	ConnectTimeoutMs int    `json:"connectTimeoutMs" yaml:"connectTimeoutMs"`
	ReadTimeoutMs    int    `json:"readTimeoutMs" yaml:"readTimeoutMs"`
	WriteTimeoutMs   int    `json:"writeTimeoutMs" yaml:"writeTimeoutMs"`
	BackoffMs        int    `json:"backoffMs" yaml:"backoffMs"`
	MaxRetries       int    `json:"maxRetries" yaml:"maxRetries"`
	MinPayload       int    `json:"minPayload" yaml:"minPayload"`
	MaxPayload       int    `json:"maxPayload" yaml:"maxPayload"`
	Rate             int    `json:"rate" yaml:"rate"`               // tests started per second, 0 = unlimited
	MaxInFlight      int    `json:"maxInFlight" yaml:"maxInFlight"` // 0 = one goroutine per test
	Output           string `json:"output" yaml:"output"`
	Debug            bool   `json:"debug" yaml:"debug"`
}

// Default returns the built-in settings
func Default() *Settings {
	return &Settings{
		ConnectTimeoutMs: int(probe.DefaultConnectTimeout / time.Millisecond),
		ReadTimeoutMs:    int(probe.DefaultReadTimeout / time.Millisecond),
		WriteTimeoutMs:   int(probe.DefaultWriteTimeout / time.Millisecond),
		BackoffMs:        int(probe.DefaultBackoff / time.Millisecond),
		MaxRetries:       probe.DefaultMaxRetries,
		MinPayload:       payload.DefaultMinLength,
		MaxPayload:       payload.DefaultMaxLength,
		Output:           OutputText,
	}
}

// Load returns the defaults overlaid with the file at path (if any) and then
// with the process environment. envFile, when set, is loaded into the
// environment first without overriding variables that are already set.
func Load(path, envFile string) (*Settings, error) {
	s := Default()

	if path != "" {
		if err := s.loadFile(path); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(jsonc.ToJSON(data), s); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// ApplyEnv overlays ROUNDTRIP_* variables found through lookup
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"CONNECT_TIMEOUT_MS", &s.ConnectTimeoutMs},
		{"READ_TIMEOUT_MS", &s.ReadTimeoutMs},
		{"WRITE_TIMEOUT_MS", &s.WriteTimeoutMs},
		{"BACKOFF_MS", &s.BackoffMs},
		{"MAX_RETRIES", &s.MaxRetries},
		{"MIN_PAYLOAD", &s.MinPayload},
		{"MAX_PAYLOAD", &s.MaxPayload},
		{"RATE", &s.Rate},
		{"MAX_IN_FLIGHT", &s.MaxInFlight},
	}
	for _, v := range ints {
		raw, ok := lookup(EnvPrefix + v.name)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, v.name, raw)
		}
		*v.dst = n
	}

	if raw, ok := lookup(EnvPrefix + "OUTPUT"); ok && raw != "" {
		s.Output = strings.ToLower(strings.TrimSpace(raw))
	}
	if raw, ok := lookup(EnvPrefix + "DEBUG"); ok && raw != "" {
		debug, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%sDEBUG: %q is not a boolean", EnvPrefix, raw)
		}
		s.Debug = debug
	}
	return nil
}

// Validate validates the settings
func (s *Settings) Validate() error {
	if s.ConnectTimeoutMs <= 0 {
		return fmt.Errorf("connect timeout must be greater than 0")
	}
	if s.ReadTimeoutMs <= 0 {
		return fmt.Errorf("read timeout must be greater than 0")
	}
	if s.WriteTimeoutMs <= 0 {
		return fmt.Errorf("write timeout must be greater than 0")
	}
	if s.BackoffMs < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if s.MinPayload < 0 {
		return fmt.Errorf("minimum payload length cannot be negative")
	}
	if s.MaxPayload <= s.MinPayload {
		return fmt.Errorf("maximum payload length must be greater than minimum")
	}
	if s.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	if s.MaxInFlight < 0 {
		return fmt.Errorf("max in-flight cannot be negative")
	}
	switch s.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("output must be one of text, json, yaml")
	}
	return nil
}

// GetConnectTimeout returns the per-attempt dial timeout
func (s *Settings) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutMs) * time.Millisecond
}

// GetReadTimeout returns the response read timeout
func (s *Settings) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// GetWriteTimeout returns the request write timeout
func (s *Settings) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

// GetBackoff returns the pause between connect attempts
func (s *Settings) GetBackoff() time.Duration {
	return time.Duration(s.BackoffMs) * time.Millisecond
}

// ProbeOptions converts the settings into probe options
func (s *Settings) ProbeOptions(logger *zap.Logger) probe.Options {
	return probe.Options{
		ConnectTimeout: s.GetConnectTimeout(),
		ReadTimeout:    s.GetReadTimeout(),
		WriteTimeout:   s.GetWriteTimeout(),
		Retry: probe.RetryPolicy{
			MaxRetries: s.MaxRetries,
			Backoff:    s.GetBackoff(),
		},
		Logger: logger,
	}
}

// RunnerOptions converts the settings into batch runner options
func (s *Settings) RunnerOptions(logger *zap.Logger, recorder batch.Recorder) (batch.Options, error) {
	gen, err := payload.NewGenerator(s.MinPayload, s.MaxPayload)
	if err != nil {
		return batch.Options{}, fmt.Errorf("failed to create payload generator: %w", err)
	}

	return batch.Options{
		Probe:       s.ProbeOptions(logger),
		Payloads:    gen,
		Recorder:    recorder,
		Logger:      logger,
		Rate:        s.Rate,
		MaxInFlight: s.MaxInFlight,
	}, nil
}
