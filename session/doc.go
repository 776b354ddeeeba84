// Package session provides Redis-backed persistence for wallet sessions, the
// per-address session index, and the reconciliation sweep that keeps the two
// consistent.
//
// # Storage layout
//
// Each session is one JSON value under "<prefix>:<id>" with the configured
// TTL. Each address owns a set under "<prefix>a:<address>" listing the ids
// believed live for it. The two writes are not transactional: a failed index
// write leaves the record readable by id, and [Store.RunReconciliation]
// re-derives index membership, re-applies missing TTLs and drops ids whose
// record is gone.
//
// # Encoding
//
// Records are JSON with RFC 3339 UTC timestamps and a format version. Unknown
// fields are ignored on read; missing required fields produce a [DecodeError].
//
// # What this package must NOT do
//
//   - Enforce chain allow-lists or address validity (the service layer does).
//   - Hold locks across backend calls or wrap dual writes in transactions.
//   - Import goSession, jwt, or analytics (no upward imports).
package session
