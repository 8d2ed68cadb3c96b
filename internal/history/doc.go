// Package history keeps the most recent samples of named series in bounded
// FIFO rings and mirrors each ring to a kvstore.Store as a JSON array.
//
// The in-memory ring is authoritative. Writes to the backing store are best
// effort: a failed write is logged and counted, never returned to the caller.
package history
