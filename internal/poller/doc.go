// Package poller implements a generic periodic refresh loop.
//
// A Poller:
//   - Invokes its producer immediately on Start
//   - Waits Interval after each invocation completes, then invokes again
//   - Never has more than one invocation in flight
//   - Keeps the last successful result when an invocation fails
//   - Discards the result of an invocation that completes after Cancel
package poller
