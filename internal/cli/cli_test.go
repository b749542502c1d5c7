package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/config"
	"github.com/studiowebux/roundtrip/internal/echo"
)

func TestPrompter_RepromptsUntilValid(t *testing.T) {
	// each invalid entry is rejected and asked again; blank lines are skipped
	input := strings.Join([]string{
		"localhost",
		"300.1.1.1",
		"",
		"::1",
		"0",
		"70000",
		"http",
		"7",
		"-3",
		"25",
	}, "\n") + "\n"

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(input), &out)

	target, err := p.Target()
	if err != nil {
		t.Fatalf("Target failed: %v", err)
	}
	runs, err := p.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}

	if target.Host != "::1" || target.Port != 7 {
		t.Errorf("Expected [::1]:7, got: %s", target)
	}
	if runs != 25 {
		t.Errorf("Expected 25 runs, got: %d", runs)
	}
	if got := strings.Count(out.String(), "Invalid value"); got != 6 {
		t.Errorf("Expected 6 rejections, got: %d\n%s", got, out.String())
	}
}

func TestPrompter_LastLineWithoutNewline(t *testing.T) {
	p := NewPrompter(strings.NewReader("12"), &bytes.Buffer{})
	runs, err := p.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if runs != 12 {
		t.Errorf("Expected 12, got: %d", runs)
	}
}

func TestPrompter_InputClosed(t *testing.T) {
	p := NewPrompter(strings.NewReader("nope\n"), &bytes.Buffer{})
	if _, err := p.Target(); err == nil {
		t.Error("Expected an error once input runs out")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"127.0.0.1", "127.0.0.1", true},
		{"::1", "::1", true},
		{"[2001:db8::1]", "2001:db8::1", true},
		{"example.com", "", false},
		{"1.2.3", "", false},
	}
	for _, tt := range tests {
		got, err := ParseAddress(tt.input)
		if tt.valid && (err != nil || got != tt.want) {
			t.Errorf("ParseAddress(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
		if !tt.valid && err == nil {
			t.Errorf("ParseAddress(%q) should fail", tt.input)
		}
	}
}

func TestKeyModel(t *testing.T) {
	tests := []struct {
		name  string
		key   tea.KeyMsg
		again bool
	}{
		{"escape exits", tea.KeyMsg{Type: tea.KeyEsc}, false},
		{"ctrl+c exits", tea.KeyMsg{Type: tea.KeyCtrlC}, false},
		{"enter runs again", tea.KeyMsg{Type: tea.KeyEnter}, true},
		{"letter runs again", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, cmd := keyModel{}.Update(tt.key)
			if cmd == nil {
				t.Fatal("Expected the program to quit after a key press")
			}
			m := model.(keyModel)
			if m.again != tt.again {
				t.Errorf("Expected again=%v, got: %v", tt.again, m.again)
			}
			if m.View() != "" {
				t.Error("Expected an empty view after the key press")
			}
		})
	}

	if _, cmd := (keyModel{}).Update(tea.WindowSizeMsg{Width: 80}); cmd != nil {
		t.Error("Non-key messages should be ignored")
	}
}

func sampleReport() *batch.Report {
	return &batch.Report{
		Target:         "127.0.0.1:7",
		Requested:      10,
		Collected:      10,
		Success:        6,
		Fail:           1,
		Exceptions:     3,
		ExceptionKinds: map[string]int{batch.KindConnectionExhausted: 2, batch.KindConnectionReset: 1},
		Elapsed:        1500 * time.Microsecond,
		ElapsedMs:      1.5,
	}
}

func TestFormatReport_Text(t *testing.T) {
	out, err := FormatReport(sampleReport(), config.OutputText)
	if err != nil {
		t.Fatalf("FormatReport failed: %v", err)
	}

	for _, want := range []string{"127.0.0.1:7", "Elapsed", "1.5ms", "Success", "Fail", "Exceptions",
		batch.KindConnectionExhausted, batch.KindConnectionReset, "Latency"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in report:\n%s", want, out)
		}
	}
	if strings.Index(out, batch.KindConnectionExhausted) > strings.Index(out, batch.KindConnectionReset) {
		t.Error("Expected the most frequent kind first")
	}
}

func TestFormatReport_Machine(t *testing.T) {
	out, err := FormatReport(sampleReport(), config.OutputJSON)
	if err != nil {
		t.Fatalf("FormatReport json failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded["exceptions"] != float64(3) {
		t.Errorf("Expected exceptions=3, got: %v", decoded["exceptions"])
	}

	out, err = FormatReport(sampleReport(), config.OutputYAML)
	if err != nil {
		t.Fatalf("FormatReport yaml failed: %v", err)
	}
	decoded = nil
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if decoded["success"] != 6 {
		t.Errorf("Expected success=6, got: %v", decoded["success"])
	}

	if _, err := FormatReport(sampleReport(), "xml"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestRun(t *testing.T) {
	server := echo.NewServer(&echo.Config{Host: "127.0.0.1"}, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start echo responder: %v", err)
	}
	defer server.Stop()

	settings := config.Default()
	settings.MaxPayload = 64
	settings.Output = config.OutputJSON

	var out bytes.Buffer
	opts := Options{Settings: settings, In: strings.NewReader(""), Out: &out}
	target := batch.Target{Host: "127.0.0.1", Port: server.Port()}

	if err := Run(context.Background(), opts, target, 5); err != nil {
		t.Fatalf("Run failed: %v\n%s", err, out.String())
	}

	var report batch.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("Invalid JSON report: %v", err)
	}
	if report.Success != 5 {
		t.Errorf("Expected 5 successes, got: %d", report.Success)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	server := echo.NewServer(&echo.Config{
		Host:   "127.0.0.1",
		Faults: []echo.Fault{{Connection: 1, Action: echo.ActionAlter}},
	}, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start echo responder: %v", err)
	}
	defer server.Stop()

	var out bytes.Buffer
	opts := Options{In: strings.NewReader(""), Out: &out}
	err := Run(context.Background(), opts, batch.Target{Host: "127.0.0.1", Port: server.Port()}, 3)
	if !errors.Is(err, ErrBatchFailed) {
		t.Errorf("Expected ErrBatchFailed, got: %v", err)
	}
	if !strings.Contains(out.String(), "Fail") {
		t.Errorf("Expected the report to be printed, got:\n%s", out.String())
	}
}

func TestRun_MissingParametersWithoutTerminal(t *testing.T) {
	opts := Options{In: strings.NewReader("127.0.0.1\n7\n1\n"), Out: &bytes.Buffer{}}
	if err := Run(context.Background(), opts, batch.Target{}, 0); err == nil {
		t.Error("Expected an error when parameters are missing and stdin is piped")
	}
}

func TestInteractive(t *testing.T) {
	server := echo.NewServer(&echo.Config{Host: "127.0.0.1"}, nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start echo responder: %v", err)
	}
	defer server.Stop()

	params := func(runs int) string {
		return fmt.Sprintf("127.0.0.1\n%d\n%d\n", server.Port(), runs)
	}

	tests := []struct {
		name    string
		input   string
		reports int
	}{
		{"escape exits", params(3) + "\x1b", 1},
		{"end of input exits", params(3), 1},
		{"other key runs again", params(3) + "r" + params(2) + "\x1b", 2},
		{"ctrl+c exits", params(1) + "\x03" + params(1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := config.Default()
			settings.MaxPayload = 64

			var out bytes.Buffer
			opts := Options{Settings: settings, In: strings.NewReader(tt.input), Out: &out}

			done := make(chan error, 1)
			go func() { done <- Interactive(context.Background(), opts) }()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Interactive failed: %v\n%s", err, out.String())
				}
			case <-time.After(10 * time.Second):
				t.Fatal("Interactive did not return")
			}

			if got := strings.Count(out.String(), "Round-trip report for"); got != tt.reports {
				t.Errorf("Expected %d reports, got: %d\n%s", tt.reports, got, out.String())
			}
			if got := strings.Count(out.String(), "Done."); got != tt.reports {
				t.Errorf("Expected %d Done lines, got: %d", tt.reports, got)
			}
		})
	}
}

func TestPromptMissing(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		target     batch.Target
		runs       int
		wantPrompt []string
		skipPrompt []string
	}{
		{
			name:       "port only",
			input:      "7\n",
			target:     batch.Target{Host: "127.0.0.1"},
			runs:       5,
			wantPrompt: []string{"Enter port"},
			skipPrompt: []string{"Enter IP address", "Enter number of runs"},
		},
		{
			name:       "address and runs",
			input:      "::1\n9\n",
			target:     batch.Target{Port: 7},
			wantPrompt: []string{"Enter IP address", "Enter number of runs"},
			skipPrompt: []string{"Enter port"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			target, runs, err := promptMissing(NewPrompter(strings.NewReader(tt.input), &out), tt.target, tt.runs)
			if err != nil {
				t.Fatalf("promptMissing failed: %v", err)
			}
			if err := target.Validate(); err != nil || runs <= 0 {
				t.Errorf("Expected a complete target and run count, got: %s, %d", target, runs)
			}
			for _, want := range tt.wantPrompt {
				if !strings.Contains(out.String(), want) {
					t.Errorf("Expected prompt %q, got: %q", want, out.String())
				}
			}
			for _, skip := range tt.skipPrompt {
				if strings.Contains(out.String(), skip) {
					t.Errorf("Did not expect prompt %q, got: %q", skip, out.String())
				}
			}
		})
	}
}
