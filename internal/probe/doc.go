/*
Package probe runs a single round-trip test against a TCP endpoint.

# Overview

A Process takes one types.TestSource and always produces exactly one
types.TestResult. Errors never escape Run: they are attached to the result.

# Connect Phase

Each attempt dials a fresh connection bounded by ConnectTimeout. A failed attempt
is logged with the underlying socket error, then retried after a fixed backoff.
The retry policy is an explicit loop:

	attempt 0 -> backoff -> attempt 1 -> ... -> attempt MaxRetries -> give up

With the defaults that is 6 dials and 5 backoffs of 30ms. Once the retries are
spent the result carries ErrConnectionExhausted wrapping the last dial error and
an empty response.

# Exchange Phase

On connect, Nagle's algorithm is disabled and independent write and read
deadlines are set. The request is written as one newline-terminated line. A
write that times out is logged but the read still runs. A read that times out
leaves the response empty without marking a failure. The connection is closed
on every path out of the exchange.

# Cancellation

The context interrupts dials and backoff waits. Reads and writes already in
progress are only bounded by their deadlines.
*/
package probe
