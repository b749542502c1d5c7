package types

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
)

// TestSource describes a single round-trip test case
type TestSource struct {
	endpoint string
	request  []byte
	hash     Digest
}

// NewTestSource creates a source for endpoint (host:port). The request is copied
// and its digest computed up front.
func NewTestSource(endpoint string, request []byte) (*TestSource, error) {
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if bytes.IndexByte(request, '\n') >= 0 {
		return nil, fmt.Errorf("request must not contain a line terminator")
	}

	req := make([]byte, len(request))
	copy(req, request)

	return &TestSource{
		endpoint: endpoint,
		request:  req,
		hash:     Sum(req),
	}, nil
}

// Endpoint joins host and port into an endpoint string, bracketing IPv6 hosts
func Endpoint(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Endpoint returns the host:port the test targets
func (s *TestSource) Endpoint() string {
	return s.endpoint
}

// Request returns a copy of the payload
func (s *TestSource) Request() []byte {
	out := make([]byte, len(s.request))
	copy(out, s.request)
	return out
}

// Len returns the payload length in bytes
func (s *TestSource) Len() int {
	return len(s.request)
}

// Hash returns the digest of the payload
func (s *TestSource) Hash() Digest {
	return s.hash
}

// Line returns the payload followed by the line terminator, ready for the wire
func (s *TestSource) Line() []byte {
	line := make([]byte, len(s.request)+1)
	copy(line, s.request)
	line[len(s.request)] = '\n'
	return line
}

// Matches reports whether response is byte-identical to the request and
// carries the same digest
func (s *TestSource) Matches(response []byte) bool {
	return bytes.Equal(response, s.request) && Sum(response) == s.hash
}

// NewResult creates a result for this source
func (s *TestSource) NewResult(response []byte, answered bool, failure error) *TestResult {
	return &TestResult{
		Source:   s,
		Response: response,
		Answered: answered,
		Failure:  failure,
	}
}
