package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/studiowebux/roundtrip/internal/batch"
	"github.com/studiowebux/roundtrip/internal/cli"
	"github.com/studiowebux/roundtrip/internal/config"
	"github.com/studiowebux/roundtrip/internal/echo"
	"github.com/studiowebux/roundtrip/internal/logging"
	"github.com/studiowebux/roundtrip/internal/metrics"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrBatchFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roundtrip",
	Short: "TCP round-trip verification harness",
	Long: `roundtrip sends randomly generated payloads to a line-based TCP echo
service over many concurrent connections and verifies every echo.

Run without arguments to be prompted for an address, a port and a run count.
After each report press any key to run again, or Esc to exit.

Examples:
  roundtrip                                        # Interactive loop
  roundtrip run --host 127.0.0.1 --port 7 -n 1000  # One batch, text report
  roundtrip run --host ::1 --port 7 -n 50 -o json  # Machine-readable report
  roundtrip echo --port 7007 --faults faults.yaml  # Local echo responder`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		return cli.Interactive(cmd.Context(), cli.Options{Settings: settings, Logger: logger})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single batch and print the report",
	Long: `Run a single batch against --host:--port and print the report.

Missing parameters are prompted for when stdin is a terminal. The exit code is
non-zero when any test failed, raised an exception, or the batch was cancelled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		opts := cli.Options{Settings: settings, Logger: logger}

		if flagMetricsAddr != "" {
			recorder := metrics.NewRecorder()
			server, errCh := recorder.Serve(flagMetricsAddr)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.Shutdown(ctx)
			}()
			go func() {
				if err := <-errCh; err != nil {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			logger.Info("serving metrics", zap.String("addr", flagMetricsAddr))
			opts.Recorder = recorder
		}

		target := batch.Target{Host: flagHost, Port: flagPort}
		return cli.Run(cmd.Context(), opts, target, flagRuns)
	},
}

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run a line-based TCP echo responder",
	Long: `Run a TCP echo responder that replies to one newline-terminated line per
connection. A yaml or json faults file can truncate, alter, drop, delay or reset
selected connections.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		echoConfig := &echo.Config{}
		if flagFaults != "" {
			loaded, err := echo.LoadConfig(flagFaults)
			if err != nil {
				return err
			}
			echoConfig = loaded
		}
		if cmd.Flags().Changed("host") || echoConfig.Host == "" {
			echoConfig.Host = flagEchoHost
		}
		if cmd.Flags().Changed("port") || echoConfig.Port == 0 {
			echoConfig.Port = flagEchoPort
		}

		server := echo.NewServer(echoConfig, logger)
		if err := server.Start(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Echo responder listening on %s (Ctrl+C to stop)\n", server.Addr())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		fmt.Fprintf(os.Stderr, "Stopping after %d connections (%d faulted)\n", server.Accepted(), server.Faulted())
		return server.Stop()
	},
}

// Global flags
var (
	flagConfig  string
	flagEnvFile string
	flagDebug   bool
)

// Flags for run
var (
	flagHost        string
	flagPort        int
	flagRuns        int
	flagOutput      string
	flagRate        int
	flagMaxInFlight int
	flagMetricsAddr string
)

// Flags for echo
var (
	flagEchoHost string
	flagEchoPort int
	flagFaults   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load ROUNDTRIP_* environment variables from file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Log every test at debug level")

	runCmd.Flags().StringVar(&flagHost, "host", "", "IPv4 or IPv6 address of the echo service")
	runCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "TCP port of the echo service")
	runCmd.Flags().IntVarP(&flagRuns, "runs", "n", 0, "Number of tests in the batch")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (text/json/yaml)")
	runCmd.Flags().IntVar(&flagRate, "rate", 0, "Tests started per second (0 = unlimited)")
	runCmd.Flags().IntVar(&flagMaxInFlight, "max-in-flight", 0, "Concurrent tests (0 = one per test)")
	runCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	echoCmd.Flags().StringVar(&flagEchoHost, "host", "127.0.0.1", "Address to listen on")
	echoCmd.Flags().IntVarP(&flagEchoPort, "port", "p", 7007, "Port to listen on")
	echoCmd.Flags().StringVarP(&flagFaults, "faults", "f", "", "Responder config with fault rules (.yaml, .yml or .json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(echoCmd)
}

// setup resolves settings (defaults, file, environment, then flags) and builds
// the logger
func setup(cmd *cobra.Command) (*config.Settings, *zap.Logger, error) {
	settings, err := config.Load(flagConfig, flagEnvFile)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		settings.Debug = flagDebug
	}
	if flags.Changed("output") {
		settings.Output = flagOutput
	}
	if flags.Changed("rate") {
		settings.Rate = flagRate
	}
	if flags.Changed("max-in-flight") {
		settings.MaxInFlight = flagMaxInFlight
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger, err := logging.New(settings.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return settings, logger, nil
}
