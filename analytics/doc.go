// Package analytics keeps daily increment-only counters and computes
// point-in-time rollups of active sessions.
//
// Counter keys are "<prefix>:<YYYY-MM-DD>:<name>" with dates in UTC. Each
// key receives the retention TTL on its first increment of the day, so old
// days disappear without a cleanup job.
//
// # What this package must NOT do
//
//   - Write session records or index sets. Rollups read through ListAll only.
//   - Sit on a request hot path. Counter failures are reported to the caller,
//     who logs them and carries on.
package analytics
