// Package rate provides the in-process sliding-window limiter used to throttle
// session creation per wallet address and per client IP.
//
// # Window semantics
//
// Each key keeps the timestamps of its accepted hits inside the window. A hit
// is allowed while fewer than Limit timestamps remain; expired timestamps are
// pruned on access and by a background cleanup loop.
//
// # What this package must NOT do
//
//   - Share state across processes. Limits are per replica.
//   - Be imported outside the goSession module.
package rate
