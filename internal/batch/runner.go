package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/roundtrip/internal/collector"
	"github.com/studiowebux/roundtrip/internal/payload"
	"github.com/studiowebux/roundtrip/internal/probe"
	"github.com/studiowebux/roundtrip/internal/types"
)

// State is the lifecycle stage of a batch
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateDispatching
	StateCollecting
	StateFinished
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateFinished:
		return "finished"
	case StateReporting:
		return "reporting"
	default:
		return "idle"
	}
}

// Recorder observes batch progress. metrics.Recorder implements it.
type Recorder interface {
	ObserveResult(result *types.TestResult, kind string)
	ObserveRetry()
	ObserveBatch(report *Report)
}

// Options configures a Runner
type Options struct {
	Probe    probe.Options
	Payloads payload.Source // nil means a Generator over [0, 4096)
	Recorder Recorder
	Logger   *zap.Logger

	Rate        int // tests started per second, 0 = as fast as possible
	MaxInFlight int // concurrent tests, 0 = one goroutine per test
}

// Runner executes batches
type Runner struct {
	process     *probe.Process
	payloads    payload.Source
	recorder    Recorder
	logger      *zap.Logger
	limiter     ratelimit.Limiter
	maxInFlight int
	state       atomic.Int32
}

// NewRunner creates a Runner from opts
func NewRunner(opts Options) (*Runner, error) {
	if opts.Rate < 0 {
		return nil, fmt.Errorf("rate cannot be negative")
	}
	if opts.MaxInFlight < 0 {
		return nil, fmt.Errorf("max in-flight cannot be negative")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	payloads := opts.Payloads
	if payloads == nil {
		gen, err := payload.NewGenerator(payload.DefaultMinLength, payload.DefaultMaxLength)
		if err != nil {
			return nil, fmt.Errorf("failed to create payload generator: %w", err)
		}
		payloads = gen
	}

	probeOpts := opts.Probe
	if probeOpts.Logger == nil {
		probeOpts.Logger = logger
	}
	if opts.Recorder != nil {
		onRetry := probeOpts.OnRetry
		probeOpts.OnRetry = func() {
			opts.Recorder.ObserveRetry()
			if onRetry != nil {
				onRetry()
			}
		}
	}

	process, err := probe.New(probeOpts)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		process:     process,
		payloads:    payloads,
		recorder:    opts.Recorder,
		logger:      logger,
		maxInFlight: opts.MaxInFlight,
	}
	if opts.Rate > 0 {
		r.limiter = ratelimit.New(opts.Rate)
	}
	return r, nil
}

// State returns the stage of the batch currently running
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.logger.Debug("batch state", zap.Stringer("state", s))
}

// Run executes n tests against target. Invalid input is reported as an error
// before anything is dispatched. A cancelled ctx ends the wait early; the
// returned report then covers only the results collected so far.
func (r *Runner) Run(ctx context.Context, target Target, n int) (*Report, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if err := ValidateRuns(n); err != nil {
		return nil, err
	}

	r.setState(StateBuilding)
	sources, err := r.buildSources(target, n)
	if err != nil {
		r.setState(StateIdle)
		return nil, err
	}

	coll := collector.New(n)
	// capacity n: late results never block once the wait is abandoned
	results := make(chan *types.TestResult, n)

	r.setState(StateDispatching)
	go r.dispatch(ctx, sources, results)

	r.setState(StateCollecting)
	cancelled := r.collect(ctx, coll, results, n)

	coll.Finish()
	r.setState(StateFinished)

	report := Summarize(coll, target.Address(), n)
	report.Cancelled = cancelled

	r.setState(StateReporting)
	if r.recorder != nil {
		r.recorder.ObserveBatch(report)
	}

	r.logger.Info("batch complete",
		zap.String("target", report.Target),
		zap.Int("requested", n),
		zap.Int("collected", report.Collected),
		zap.Int("success", report.Success),
		zap.Int("fail", report.Fail),
		zap.Int("exceptions", report.Exceptions),
		zap.Duration("elapsed", report.Elapsed),
		zap.Bool("cancelled", cancelled))

	return report, nil
}

func (r *Runner) buildSources(target Target, n int) ([]*types.TestSource, error) {
	endpoint := target.Address()
	sources := make([]*types.TestSource, n)
	for i := range sources {
		src, err := types.NewTestSource(endpoint, r.payloads.Next())
		if err != nil {
			return nil, fmt.Errorf("failed to build test %d: %w", i+1, err)
		}
		sources[i] = src
	}
	return sources, nil
}

// dispatch starts one test per source. It stops starting new tests once ctx
// is done but never interrupts tests already running.
func (r *Runner) dispatch(ctx context.Context, sources []*types.TestSource, results chan<- *types.TestResult) {
	var g errgroup.Group
	if r.maxInFlight > 0 {
		g.SetLimit(r.maxInFlight)
	}

	for i, src := range sources {
		if r.limiter != nil {
			r.limiter.Take()
		}
		if ctx.Err() != nil {
			r.logger.Debug("dispatch stopped", zap.Int("started", i), zap.Int("skipped", len(sources)-i))
			break
		}

		id := i + 1
		g.Go(func() error {
			results <- r.process.Run(ctx, id, src)
			return nil
		})
	}

	g.Wait()
}

// collect drains results into coll until n have arrived or ctx is done.
// It reports whether the wait was cancelled.
func (r *Runner) collect(ctx context.Context, coll *collector.Collector, results <-chan *types.TestResult, n int) bool {
	for outstanding := n; outstanding > 0; outstanding-- {
		select {
		case result := <-results:
			if err := coll.Add(result); err != nil {
				r.logger.Error("failed to collect result", zap.Error(err))
				continue
			}
			if r.recorder != nil {
				r.recorder.ObserveResult(result, FailureKind(result.Failure))
			}
		case <-ctx.Done():
			r.logger.Warn("batch cancelled",
				zap.Int("collected", coll.Count()),
				zap.Int("outstanding", outstanding),
				zap.Error(ctx.Err()))
			return true
		}
	}
	return false
}
