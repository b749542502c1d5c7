package types

import "time"

// Outcome classifies a finished test
type Outcome string

const (
	// OutcomeSuccess is an answered exchange whose echo matches the request
	OutcomeSuccess Outcome = "success"
	// OutcomeFail is an exchange without transport failure whose echo diverged
	OutcomeFail Outcome = "fail"
	// OutcomeException is a test that ended with a transport failure
	OutcomeException Outcome = "exception"
)

// TestResult is the immutable outcome of one test execution
type TestResult struct {
	Source   *TestSource
	Response []byte
	Answered bool  // a response line was received before the read deadline
	Failure  error // transport-level failure, nil otherwise
	Retries  int   // connect retries performed
	Duration time.Duration
}

// Hash returns the digest of the response
func (r *TestResult) Hash() Digest {
	return Sum(r.Response)
}

// Outcome classifies the result. A mismatch without failure is a fail, not an
// exception. A read that timed out counts as a mismatch even for empty payloads.
func (r *TestResult) Outcome() Outcome {
	if r.Failure != nil {
		return OutcomeException
	}
	if r.Answered && r.Source.Matches(r.Response) && r.Hash() == r.Source.Hash() {
		return OutcomeSuccess
	}
	return OutcomeFail
}
