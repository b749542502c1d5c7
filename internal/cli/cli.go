// Package cli drives batches from the command line, either once from flags or
// in an interactive prompt loop.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/config"
)

// ErrBatchFailed is returned by Run when a batch had fails, exceptions, or
// was cancelled
var ErrBatchFailed = errors.New("batch did not fully succeed")

// Options contains what both modes need to run batches
type Options struct {
	Settings *config.Settings
	Logger   *zap.Logger
	Recorder batch.Recorder
	In       io.Reader
	Out      io.Writer
}

func (o *Options) setDefaults() {
	if o.Settings == nil {
		o.Settings = config.Default()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

// isInteractive checks if in is a terminal (not piped)
func isInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRunner(opts Options) (*batch.Runner, error) {
	runnerOpts, err := opts.Settings.RunnerOptions(opts.Logger, opts.Recorder)
	if err != nil {
		return nil, err
	}
	return batch.NewRunner(runnerOpts)
}

// execute runs one batch. An interrupt cancels the wait for outstanding tests.
func execute(ctx context.Context, runner *batch.Runner, target batch.Target, runs int) (*batch.Report, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return runner.Run(ctx, target, runs)
}

// promptMissing asks only for the parameters that were not supplied
func promptMissing(p *Prompter, target batch.Target, runs int) (batch.Target, int, error) {
	var err error
	if target.Host == "" {
		if target.Host, err = p.Address(); err != nil {
			return target, runs, err
		}
	}
	if target.Port == 0 {
		if target.Port, err = p.Port(); err != nil {
			return target, runs, err
		}
	}
	if runs == 0 {
		if runs, err = p.Runs(); err != nil {
			return target, runs, err
		}
	}
	return target, runs, nil
}

// Run executes a single batch and prints the report in the configured format.
// Missing parameters are prompted for when stdin is a terminal.
func Run(ctx context.Context, opts Options, target batch.Target, runs int) error {
	opts.setDefaults()

	if target.Host == "" || target.Port == 0 || runs == 0 {
		if !isInteractive(opts.In) {
			return fmt.Errorf("--host, --port and --runs are required when stdin is not a terminal")
		}
		var err error
		target, runs, err = promptMissing(NewPrompter(opts.In, opts.Out), target, runs)
		if err != nil {
			return err
		}
	}

	runner, err := newRunner(opts)
	if err != nil {
		return err
	}

	report, err := execute(ctx, runner, target, runs)
	if err != nil {
		return err
	}

	output, err := FormatReport(report, opts.Settings.Output)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprint(opts.Out, output)

	if report.Cancelled || report.Fail > 0 || report.Exceptions > 0 {
		return ErrBatchFailed
	}
	return nil
}

// Interactive prompts for a target and a run count, runs the batch and prints
// the report, then waits for a key press: Esc exits, any other key starts over.
func Interactive(ctx context.Context, opts Options) error {
	opts.setDefaults()

	runner, err := newRunner(opts)
	if err != nil {
		return err
	}
	prompter := NewPrompter(opts.In, opts.Out)

	for {
		target, err := prompter.Target()
		if err != nil {
			return err
		}
		runs, err := prompter.Runs()
		if err != nil {
			return err
		}

		fmt.Fprintf(opts.Out, "Running %d tests against %s...\n", runs, target)
		report, err := execute(ctx, runner, target, runs)
		if err != nil {
			return err
		}
		if report.Cancelled {
			fmt.Fprintln(opts.Out, "Operation was cancelled.")
		}

		output, err := FormatReport(report, config.OutputText)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(opts.Out, output)
		fmt.Fprintln(opts.Out, "Done.")

		if ctx.Err() != nil {
			return nil
		}
		again, err := waitForKey(prompter.in, opts.In, opts.Out)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}
