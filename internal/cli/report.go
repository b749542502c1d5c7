package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/config"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	labelStyle     = lipgloss.NewStyle().Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	exceptionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// FormatReport renders a batch report as text, json or yaml
func FormatReport(report *batch.Report, format string) (string, error) {
	switch format {
	case config.OutputJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case config.OutputYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case config.OutputText, "":
		return formatText(report), nil

	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func formatText(r *batch.Report) string {
	var sb strings.Builder

	width := len("Exceptions")
	for kind := range r.ExceptionKinds {
		width = max(width, len(kind)+2)
	}
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", width+2, label)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Round-trip report for %s", r.Target)))
	sb.WriteString("\n")
	if r.Cancelled {
		sb.WriteString(failStyle.Render(fmt.Sprintf("Cancelled after %d of %d tests", r.Collected, r.Requested)))
		sb.WriteString("\n")
	}

	row("Elapsed", r.ElapsedString())
	row("Success", successStyle.Render(fmt.Sprint(r.Success)))
	row("Fail", failStyle.Render(fmt.Sprint(r.Fail)))
	row("Exceptions", exceptionStyle.Render(fmt.Sprint(r.Exceptions)))
	for _, k := range r.Kinds() {
		row("  "+k.Kind, exceptionStyle.Render(fmt.Sprint(k.Count)))
	}
	row("Retries", fmt.Sprint(r.Retries))

	if r.Collected > 0 {
		l := r.Latency
		row("Latency", mutedStyle.Render(fmt.Sprintf(
			"min %.2fms  avg %.2fms  p50 %.2fms  p95 %.2fms  p99 %.2fms  max %.2fms",
			l.MinMs, l.AvgMs, l.P50Ms, l.P95Ms, l.P99Ms, l.MaxMs)))
	}

	return sb.String()
}
