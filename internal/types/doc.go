/*
Package types defines the core data structures shared by the round-trip harness.

# Overview

The types package provides:
  - TestSource: one immutable test case (endpoint, payload, digest)
  - TestResult: the outcome of running one TestSource
  - Digest: the content fingerprint used to corroborate echoes

# Ownership

A TestSource is created once per batch and never mutated. Its accessors hand out
copies, so a source can be shared by the result that points back to it without
any synchronization.

A TestResult is produced by exactly one test execution and is read-only after
that. The Source pointer is shared, not owned.

# Digest

Digest is a pure function over a byte slice (MD5, 128 bits). It keeps no state
between calls and is safe to call from any number of goroutines.
*/
package types
