package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/roundtrip/internal/probe"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	assert.Equal(t, 3*time.Second, s.GetConnectTimeout())
	assert.Equal(t, 5*time.Second, s.GetReadTimeout())
	assert.Equal(t, 5*time.Second, s.GetWriteTimeout())
	assert.Equal(t, 30*time.Millisecond, s.GetBackoff())
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 0, s.MinPayload)
	assert.Equal(t, 4096, s.MaxPayload)
	assert.Equal(t, OutputText, s.Output)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "roundtrip.yaml", `
backoffMs: 10
maxRetries: 2
output: json
`)
	t.Setenv("ROUNDTRIP_MAX_RETRIES", "")

	s, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 10, s.BackoffMs)
	assert.Equal(t, 2, s.MaxRetries)
	assert.Equal(t, OutputJSON, s.Output)
	// untouched fields keep their defaults
	assert.Equal(t, 3000, s.ConnectTimeoutMs)
}

func TestLoad_JSONWithComments(t *testing.T) {
	path := writeFile(t, "roundtrip.json", `{
  // fail fast against local peers
  "connectTimeoutMs": 250,
  "maxInFlight": 64, /* cap sockets */
}`)

	s, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 250, s.ConnectTimeoutMs)
	assert.Equal(t, 64, s.MaxInFlight)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "roundtrip.toml", "rate = 1"},
		{"bad yaml", "roundtrip.yaml", "rate: [1"},
		{"invalid values", "roundtrip.yaml", "maxPayload: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content), "")
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "ROUNDTRIP_RATE=200\nROUNDTRIP_DEBUG=true\n")
	// godotenv sets variables process-wide; register them for cleanup
	t.Setenv("ROUNDTRIP_RATE", "")
	t.Setenv("ROUNDTRIP_DEBUG", "")
	os.Unsetenv("ROUNDTRIP_RATE")
	os.Unsetenv("ROUNDTRIP_DEBUG")

	s, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 200, s.Rate)
	assert.True(t, s.Debug)
}

func TestApplyEnv(t *testing.T) {
	s := Default()
	err := s.ApplyEnv(envMap(map[string]string{
		"ROUNDTRIP_CONNECT_TIMEOUT_MS": "1500",
		"ROUNDTRIP_MAX_IN_FLIGHT":      " 8 ",
		"ROUNDTRIP_OUTPUT":             "YAML",
		"ROUNDTRIP_DEBUG":              "1",
		"ROUNDTRIP_RATE":               "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1500, s.ConnectTimeoutMs)
	assert.Equal(t, 8, s.MaxInFlight)
	assert.Equal(t, OutputYAML, s.Output)
	assert.True(t, s.Debug)
	assert.Equal(t, 0, s.Rate)

	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"ROUNDTRIP_BACKOFF_MS": "soon"})))
	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"ROUNDTRIP_DEBUG": "maybe"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"zero connect timeout", func(s *Settings) { s.ConnectTimeoutMs = 0 }},
		{"zero read timeout", func(s *Settings) { s.ReadTimeoutMs = 0 }},
		{"zero write timeout", func(s *Settings) { s.WriteTimeoutMs = 0 }},
		{"negative backoff", func(s *Settings) { s.BackoffMs = -1 }},
		{"negative retries", func(s *Settings) { s.MaxRetries = -1 }},
		{"negative min payload", func(s *Settings) { s.MinPayload = -1 }},
		{"max not above min", func(s *Settings) { s.MinPayload, s.MaxPayload = 10, 10 }},
		{"negative rate", func(s *Settings) { s.Rate = -1 }},
		{"negative in-flight", func(s *Settings) { s.MaxInFlight = -1 }},
		{"unknown output", func(s *Settings) { s.Output = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestRunnerOptions(t *testing.T) {
	s := Default()
	s.MaxRetries = 3
	s.BackoffMs = 7
	s.MaxInFlight = 4

	opts, err := s.RunnerOptions(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, probe.RetryPolicy{MaxRetries: 3, Backoff: 7 * time.Millisecond}, opts.Probe.Retry)
	assert.Equal(t, 4, opts.MaxInFlight)
	assert.NotNil(t, opts.Payloads)
	assert.Nil(t, opts.Recorder)
}
