package batch

import (
	"fmt"
	"strings"

	"github.com/studiowebux/roundtrip/internal/types"
)

// MaxRuns caps the size of a single batch
const MaxRuns = 1000000

// Target is the endpoint every test in a batch is sent to
type Target struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Validate checks the target
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", t.Port)
	}
	return nil
}

// Address returns host:port
func (t Target) Address() string {
	return types.Endpoint(t.Host, t.Port)
}

// String implements fmt.Stringer
func (t Target) String() string {
	return t.Address()
}

// ValidateRuns checks a requested batch size
func ValidateRuns(n int) error {
	if n <= 0 {
		return fmt.Errorf("run count must be greater than 0")
	}
	if n > MaxRuns {
		return fmt.Errorf("run count cannot exceed %d", MaxRuns)
	}
	return nil
}
