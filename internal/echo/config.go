package echo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Fault actions applied to a connection instead of a faithful echo
const (
	ActionTruncate = "truncate" // echo the first half of the line
	ActionAlter    = "alter"    // change the first byte
	ActionDrop     = "drop"     // close without replying
	ActionDelay    = "delay"    // wait DelayMs, then echo faithfully
	ActionReset    = "reset"    // abort the connection with RST
)

// Config represents the echo responder configuration
type Config struct {
	Host          string  `json:"host" yaml:"host"`
	Port          int     `json:"port" yaml:"port"`
	ReadTimeoutMs int     `json:"readTimeoutMs,omitempty" yaml:"readTimeoutMs,omitempty"`
	Faults        []Fault `json:"faults,omitempty" yaml:"faults,omitempty"`
}

// Fault targets the n-th accepted connection (1-based) or every k-th one
type Fault struct {
	Connection int    `json:"connection,omitempty" yaml:"connection,omitempty"`
	Every      int    `json:"every,omitempty" yaml:"every,omitempty"`
	Action     string `json:"action" yaml:"action"`
	DelayMs    int    `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// Matches reports whether the fault applies to connection seq
func (f Fault) Matches(seq int64) bool {
	if f.Connection > 0 && seq == int64(f.Connection) {
		return true
	}
	return f.Every > 0 && seq%int64(f.Every) == 0
}

// GetReadTimeout returns the per-connection read timeout
func (c *Config) GetReadTimeout() time.Duration {
	if c.ReadTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// LoadConfig loads a responder configuration from a .yaml, .yml or .json file.
// JSON files may contain comments.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the responder configuration
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if c.ReadTimeoutMs < 0 {
		return fmt.Errorf("read timeout cannot be negative")
	}

	for i, f := range c.Faults {
		if f.Connection <= 0 && f.Every <= 0 {
			return fmt.Errorf("fault %d: connection or every is required", i)
		}
		if f.Connection < 0 || f.Every < 0 {
			return fmt.Errorf("fault %d: connection and every cannot be negative", i)
		}
		switch f.Action {
		case ActionTruncate, ActionAlter, ActionDrop, ActionReset:
		case ActionDelay:
			if f.DelayMs <= 0 {
				return fmt.Errorf("fault %d: delay requires delayMs > 0", i)
			}
		default:
			return fmt.Errorf("fault %d: action must be one of truncate, alter, drop, delay, reset", i)
		}
	}

	return nil
}
