package batch

import (
	"errors"
	"testing"
	"time"

	"github.com/studiowebux/roundtrip/internal/collector"
	"github.com/studiowebux/roundtrip/internal/probe"
	"github.com/studiowebux/roundtrip/internal/types"
)

func TestStats_Percentiles(t *testing.T) {
	s := NewStats(10)
	for i := 1; i <= 10; i++ {
		s.Add(time.Duration(i) * time.Millisecond)
	}

	if s.Min() != time.Millisecond {
		t.Errorf("Expected min 1ms, got: %v", s.Min())
	}
	if s.Max() != 10*time.Millisecond {
		t.Errorf("Expected max 10ms, got: %v", s.Max())
	}
	if s.Avg() != 5500*time.Microsecond {
		t.Errorf("Expected avg 5.5ms, got: %v", s.Avg())
	}
	if p50 := s.Percentile(50); p50 != 5500*time.Microsecond {
		t.Errorf("Expected p50 5.5ms, got: %v", p50)
	}
	if p100 := s.Percentile(100); p100 != 10*time.Millisecond {
		t.Errorf("Expected p100 10ms, got: %v", p100)
	}
}

func TestStats_Empty(t *testing.T) {
	s := NewStats(0)
	if s.Min() != 0 || s.Max() != 0 || s.Avg() != 0 || s.Percentile(99) != 0 {
		t.Error("Expected zero values for empty stats")
	}
}

func TestSummarize(t *testing.T) {
	src, _ := types.NewTestSource("127.0.0.1:7", []byte("abc"))
	c := collector.New(5)

	c.Add(src.NewResult([]byte("abc"), true, nil))
	c.Add(src.NewResult([]byte("abc"), true, nil))
	c.Add(src.NewResult([]byte("abX"), true, nil))
	c.Add(src.NewResult(nil, false, errors.Join(probe.ErrConnectionExhausted)))
	c.Add(src.NewResult(nil, false, errors.New("weird")))
	c.Finish()

	report := Summarize(c, "127.0.0.1:7", 5)

	if report.Success != 2 || report.Fail != 1 || report.Exceptions != 2 {
		t.Fatalf("Unexpected counts: success=%d fail=%d exceptions=%d", report.Success, report.Fail, report.Exceptions)
	}
	kinds := report.Kinds()
	if len(kinds) != 2 {
		t.Fatalf("Expected 2 kinds, got: %v", kinds)
	}
	// equal counts sort by name
	if kinds[0].Kind != KindConnectionExhausted || kinds[1].Kind != KindTransport {
		t.Errorf("Unexpected kind order: %v", kinds)
	}
	if report.Collected != 5 || report.Requested != 5 {
		t.Errorf("Expected 5 collected of 5, got: %d of %d", report.Collected, report.Requested)
	}
}
