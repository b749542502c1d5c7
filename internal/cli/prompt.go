package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/studiowebux/roundtrip/internal/batch"
)

// Prompter reads batch parameters line by line, re-asking until each value
// is valid
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading from in and prompting on out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Target prompts for an address and a port
func (p *Prompter) Target() (batch.Target, error) {
	host, err := p.Address()
	if err != nil {
		return batch.Target{}, err
	}
	port, err := p.Port()
	if err != nil {
		return batch.Target{}, err
	}
	return batch.Target{Host: host, Port: port}, nil
}

// Address prompts for an IPv4 or IPv6 address
func (p *Prompter) Address() (string, error) {
	return ask(p, "Enter IP address: ", ParseAddress)
}

// Port prompts for a TCP port
func (p *Prompter) Port() (int, error) {
	return ask(p, "Enter port: ", ParsePort)
}

// Runs prompts for the number of tests in the batch
func (p *Prompter) Runs() (int, error) {
	return ask(p, "Enter number of runs: ", ParseRuns)
}

// ask prints label and re-reads a line until parse accepts it
func ask[T any](p *Prompter, label string, parse func(string) (T, error)) (T, error) {
	for {
		fmt.Fprint(p.out, label)
		line, err := p.in.ReadString('\n')
		value := strings.TrimSpace(line)

		if value != "" {
			parsed, parseErr := parse(value)
			if parseErr == nil {
				return parsed, nil
			}
			fmt.Fprintf(p.out, "Invalid value: %v\n", parseErr)
		}

		if err != nil {
			var zero T
			if err == io.EOF {
				return zero, fmt.Errorf("input closed before a valid value was entered")
			}
			return zero, fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// ParseAddress accepts a literal IPv4 or IPv6 address
func ParseAddress(s string) (string, error) {
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return "", fmt.Errorf("%q is not an IPv4 or IPv6 address", s)
	}
	return addr.String(), nil
}

// ParsePort accepts a TCP port between 1 and 65535
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%q is not a port between 1 and 65535", s)
	}
	return port, nil
}

// ParseRuns accepts a positive run count
func ParseRuns(s string) (int, error) {
	runs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if err := batch.ValidateRuns(runs); err != nil {
		return 0, err
	}
	return runs, nil
}
