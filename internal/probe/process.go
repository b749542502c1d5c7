package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/roundtrip/internal/types"
)

const (
	// DefaultConnectTimeout bounds a single dial attempt
	DefaultConnectTimeout = 3 * time.Second
	// DefaultReadTimeout bounds reading the echoed line
	DefaultReadTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds writing the request line
	DefaultWriteTimeout = 5 * time.Second

	readBufferSize = 4096
)

var (
	// ErrConnectionExhausted is attached when no connection could be established
	// within the retry policy
	ErrConnectionExhausted = errors.New("connection attempts exhausted")

	// ErrPanic marks a failure recovered from a panic inside a test
	ErrPanic = errors.New("test panicked")
)

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Process. Zero durations fall back to the defaults.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Retry          RetryPolicy
	Dialer         Dialer
	Logger         *zap.Logger

	// OnRetry is called before every reconnect
	OnRetry func()
}

// Process executes round-trip tests. A single Process is safe to share
// between goroutines.
type Process struct {
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	retry          RetryPolicy
	dialer         Dialer
	logger         *zap.Logger
	onRetry        func()
}

// New creates a Process from opts
func New(opts Options) (*Process, error) {
	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	p := &Process{
		connectTimeout: opts.ConnectTimeout,
		readTimeout:    opts.ReadTimeout,
		writeTimeout:   opts.WriteTimeout,
		retry:          opts.Retry,
		dialer:         opts.Dialer,
		logger:         opts.Logger,
		onRetry:        opts.OnRetry,
	}
	if p.connectTimeout <= 0 {
		p.connectTimeout = DefaultConnectTimeout
	}
	if p.readTimeout <= 0 {
		p.readTimeout = DefaultReadTimeout
	}
	if p.writeTimeout <= 0 {
		p.writeTimeout = DefaultWriteTimeout
	}
	if p.dialer == nil {
		p.dialer = &net.Dialer{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

// Run executes one test. id only labels log lines.
func (p *Process) Run(ctx context.Context, id int, src *types.TestSource) (result *types.TestResult) {
	start := time.Now()
	retries := 0

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("test panicked", zap.Int("test", id), zap.Any("panic", r))
			result = src.NewResult(nil, false, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		result.Retries = retries
		result.Duration = time.Since(start)
	}()

	conn, n, err := p.connect(ctx, id, src.Endpoint())
	retries = n
	if err != nil {
		p.logger.Debug("test failed to connect", zap.Int("test", id), zap.Error(err))
		return src.NewResult(nil, false, err)
	}

	response, answered, err := p.exchange(conn, id, src)
	if err != nil {
		p.logger.Debug("test failed", zap.Int("test", id), zap.Error(err))
	}
	return src.NewResult(response, answered, err)
}

// connect dials until a connection is established or the policy is spent.
// It returns the number of retries performed.
func (p *Process) connect(ctx context.Context, id int, endpoint string) (net.Conn, int, error) {
	for retry := 0; ; retry++ {
		conn, err := p.dial(ctx, endpoint)
		if err == nil {
			return conn, retry, nil
		}

		p.logger.Debug("connect attempt failed",
			zap.Int("test", id),
			zap.Int("retry", retry),
			zap.String("endpoint", endpoint),
			zap.String("socket_error", socketError(err)),
			zap.Error(err))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, retry, fmt.Errorf("connect to %s: %w", endpoint, ctxErr)
		}
		if p.retry.Exhausted(retry) {
			return nil, retry, fmt.Errorf("%w after %d retries to %s: %w", ErrConnectionExhausted, retry, endpoint, err)
		}
		if err := p.retry.Wait(ctx); err != nil {
			return nil, retry, fmt.Errorf("connect to %s: %w", endpoint, err)
		}
		if p.onRetry != nil {
			p.onRetry()
		}
	}
}

func (p *Process) dial(ctx context.Context, endpoint string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	return p.dialer.DialContext(dialCtx, "tcp", endpoint)
}

// exchange writes the request line and reads one line back. conn is always
// closed before returning.
func (p *Process) exchange(conn net.Conn, id int, src *types.TestSource) (response []byte, answered bool, err error) {
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			return nil, false, fmt.Errorf("disable send coalescing: %w", err)
		}
	}

	p.logger.Debug("test connected",
		zap.Int("test", id),
		zap.Stringer("local", conn.LocalAddr()),
		zap.Stringer("remote", conn.RemoteAddr()))

	if err := conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return nil, false, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(src.Line()); err != nil {
		if !isTimeout(err) {
			return nil, false, fmt.Errorf("write request: %w", err)
		}
		// a slow write does not fail the test on its own
		p.logger.Warn("write timed out", zap.Int("test", id), zap.Duration("timeout", p.writeTimeout))
	}

	if err := conn.SetReadDeadline(time.Now().Add(p.readTimeout)); err != nil {
		return nil, false, fmt.Errorf("set read deadline: %w", err)
	}
	reader := bufio.NewReaderSize(conn, readBufferSize)
	line, err := reader.ReadBytes('\n')

	switch {
	case err == nil:
		return trimLine(line), true, nil
	case isTimeout(err):
		p.logger.Debug("read timed out", zap.Int("test", id), zap.Duration("timeout", p.readTimeout))
		return nil, false, nil
	case errors.Is(err, io.EOF):
		// peer closed the connection; whatever arrived is the line
		if len(line) == 0 {
			return nil, false, nil
		}
		return trimLine(line), true, nil
	default:
		return trimLine(line), len(line) > 0, fmt.Errorf("read response: %w", err)
	}
}

func trimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// socketError extracts the most specific cause of a failed dial
func socketError(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	if isTimeout(err) {
		return "connect timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
