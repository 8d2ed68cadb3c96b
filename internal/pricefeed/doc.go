// Package pricefeed streams on-chain prices to in-process subscribers.
//
// Each Feed owns one polling session per underlying pool. The session is
// started by the first subscriber (or an explicit Start) and torn down when
// the last subscriber leaves. A session reads once immediately, then waits
// Interval after each read completes before reading again, so reads for one
// feed never overlap and happen once per step regardless of subscriber count.
//
// State machine:
//
//	Idle -> Connecting -> Streaming <-> Error
//	              \            \          /
//	               +--> Disconnected -> Idle
//
// A failed read is delivered to subscribers as an error event and the session
// keeps its cadence. Successful reads are appended to the feed's bounded
// history.
package pricefeed
