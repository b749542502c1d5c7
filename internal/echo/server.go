// Package echo implements a line-based TCP echo responder with optional fault
// injection. It is the peer the harness is verified against.
package echo

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Server represents the echo responder
type Server struct {
	config   *Config
	logger   *zap.Logger
	listener net.Listener

	accepted atomic.Int64
	faulted  atomic.Int64

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewServer creates a new echo responder. A zero port picks a free one.
func NewServer(config *Config, logger *zap.Logger) *Server {
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config: config,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and serves connections in the background
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Info("echo responder listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int("faults", len(s.config.Faults)))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound port, or 0 before Start
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Accepted returns the number of connections accepted so far
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Faulted returns the number of connections a fault was applied to
func (s *Server) Faulted() int64 {
	return s.faulted.Load()
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	err := s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(5 * time.Millisecond)
			continue
		}

		seq := s.accepted.Add(1)
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(conn, seq)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		if s.closing.Load() {
			conn.Close()
		}
	} else {
		delete(s.conns, conn)
	}
}

// handle serves one request line on conn
func (s *Server) handle(conn net.Conn, seq int64) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.config.GetReadTimeout()))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		s.logger.Debug("read failed", zap.Int64("conn", seq), zap.Error(err))
		return
	}
	payload := line[:len(line)-1]

	fault := s.faultFor(seq)
	if fault != nil {
		s.faulted.Add(1)
		s.logger.Debug("applying fault", zap.Int64("conn", seq), zap.String("action", fault.Action))

		switch fault.Action {
		case ActionDrop:
			return
		case ActionReset:
			if tcp, ok := conn.(*net.TCPConn); ok {
				tcp.SetLinger(0)
			}
			return
		case ActionDelay:
			time.Sleep(time.Duration(fault.DelayMs) * time.Millisecond)
		case ActionTruncate:
			if len(payload) > 0 {
				payload = payload[:len(payload)/2]
			} else {
				payload = alter(payload)
			}
		case ActionAlter:
			payload = alter(payload)
		}
	}

	reply := make([]byte, 0, len(payload)+1)
	reply = append(reply, payload...)
	reply = append(reply, '\n')
	if _, err := conn.Write(reply); err != nil {
		s.logger.Debug("write failed", zap.Int64("conn", seq), zap.Error(err))
	}
}

// faultFor returns the first fault matching seq, if any
func (s *Server) faultFor(seq int64) *Fault {
	for i := range s.config.Faults {
		if s.config.Faults[i].Matches(seq) {
			return &s.config.Faults[i]
		}
	}
	return nil
}

func alter(payload []byte) []byte {
	if len(payload) == 0 {
		return []byte("x")
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	if out[0] == 'X' {
		out[0] = 'Y'
	} else {
		out[0] = 'X'
	}
	return out
}
