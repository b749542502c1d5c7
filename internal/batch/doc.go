/*
Package batch runs many round-trip tests concurrently and summarizes them.

# Overview

A Runner drives one batch through these states:

	building -> dispatching -> collecting -> finished -> reporting

It builds N test sources for a single target, starts one goroutine per source,
feeds every result into a collector.Collector as soon as it arrives, freezes the
collector and derives a Report.

# Fan-out

Dispatch is unbounded by default: every test gets its own goroutine. Tests block
on socket I/O, which parks goroutines on the runtime netpoller, so large batches
do not starve each other. MaxInFlight and Rate exist to throttle a batch when
the peer cannot take the full burst; both are off by default.

# Cancellation

Cancelling the context abandons the wait. Results already collected stand and
the report is marked Cancelled. Tests still in flight observe the context only
while dialing or backing off; a read or write in progress runs until its
deadline. Their results are dropped.

# Classification

  - success: no failure, answered, bytes and digest equal the request
  - fail: no failure, but the echo diverged (or never arrived)
  - exception: transport failure, grouped by FailureKind
*/
package batch
