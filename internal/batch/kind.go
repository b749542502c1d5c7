package batch

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/studiowebux/roundtrip/internal/probe"
)

// Failure kinds reported in the exception breakdown
const (
	KindConnectionExhausted = "connection_exhausted"
	KindTimeout             = "timeout"
	KindConnectionRefused   = "connection_refused"
	KindConnectionReset     = "connection_reset"
	KindBrokenPipe          = "broken_pipe"
	KindUnexpectedEOF       = "unexpected_eof"
	KindNetworkUnreachable  = "network_unreachable"
	KindDNS                 = "dns"
	KindCancelled           = "cancelled"
	KindPanic               = "panic"
	KindTransport           = "transport"
)

// FailureKind maps a test failure to a stable kind name. Typed checks run
// first; the message is only inspected when the chain carries no known type.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, probe.ErrConnectionExhausted):
		return KindConnectionExhausted
	case errors.Is(err, probe.ErrPanic):
		return KindPanic
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
		return KindUnexpectedEOF
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return KindConnectionRefused
		case syscall.ECONNRESET, syscall.ECONNABORTED:
			return KindConnectionReset
		case syscall.EPIPE:
			return KindBrokenPipe
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return KindNetworkUnreachable
		case syscall.ETIMEDOUT:
			return KindTimeout
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return kindFromMessage(err.Error())
}

// kindFromMessage is the string fallback for errors without a typed cause
func kindFromMessage(msg string) string {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "connection refused"):
		return KindConnectionRefused
	case strings.Contains(msg, "connection reset"):
		return KindConnectionReset
	case strings.Contains(msg, "broken pipe"):
		return KindBrokenPipe
	case strings.Contains(msg, "network is unreachable"), strings.Contains(msg, "no route to host"):
		return KindNetworkUnreachable
	case strings.Contains(msg, "no such host"):
		return KindDNS
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "eof"):
		return KindUnexpectedEOF
	}
	return KindTransport
}
