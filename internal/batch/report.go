package batch

import (
	"cmp"
	"slices"
	"time"

	"github.com/studiowebux/roundtrip/internal/collector"
	"github.com/studiowebux/roundtrip/internal/types"
)

// Report is the aggregate outcome of one batch
type Report struct {
	Target         string         `json:"target" yaml:"target"`
	Requested      int            `json:"requested" yaml:"requested"`
	Collected      int            `json:"collected" yaml:"collected"`
	Success        int            `json:"success" yaml:"success"`
	Fail           int            `json:"fail" yaml:"fail"`
	Exceptions     int            `json:"exceptions" yaml:"exceptions"`
	ExceptionKinds map[string]int `json:"exception_kinds,omitempty" yaml:"exception_kinds,omitempty"`
	Retries        int            `json:"retries" yaml:"retries"`
	Cancelled      bool           `json:"cancelled" yaml:"cancelled"`
	ElapsedMs      float64        `json:"elapsed_ms" yaml:"elapsed_ms"`
	Latency        Latency        `json:"latency" yaml:"latency"`

	Elapsed time.Duration       `json:"-" yaml:"-"`
	Results []*types.TestResult `json:"-" yaml:"-"`
}

// KindCount is one row of the exception breakdown
type KindCount struct {
	Kind  string
	Count int
}

// Kinds returns the exception breakdown, most frequent first
func (r *Report) Kinds() []KindCount {
	kinds := make([]KindCount, 0, len(r.ExceptionKinds))
	for kind, count := range r.ExceptionKinds {
		kinds = append(kinds, KindCount{Kind: kind, Count: count})
	}
	slices.SortFunc(kinds, func(a, b KindCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return kinds
}

// ElapsedString formats the processing time for display
func (r *Report) ElapsedString() string {
	return r.Elapsed.Round(time.Microsecond).String()
}

// Summarize derives a report from a collector. The collector should be frozen
// so the counts and the elapsed time agree.
func Summarize(c *collector.Collector, target string, requested int) *Report {
	results := c.Results()
	report := &Report{
		Target:         target,
		Requested:      requested,
		Collected:      len(results),
		ExceptionKinds: make(map[string]int),
		Elapsed:        c.Elapsed(),
		Results:        results,
	}
	report.ElapsedMs = millis(report.Elapsed)

	stats := NewStats(len(results))
	for _, r := range results {
		stats.Add(r.Duration)
		report.Retries += r.Retries

		switch r.Outcome() {
		case types.OutcomeSuccess:
			report.Success++
		case types.OutcomeFail:
			report.Fail++
		case types.OutcomeException:
			report.Exceptions++
			report.ExceptionKinds[FailureKind(r.Failure)]++
		}
	}
	report.Latency = stats.Latency()

	return report
}
