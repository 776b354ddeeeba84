// Package kv defines the key-value operation contract the session store is
// built on and a Redis implementation of it.
//
// # Contract
//
// [Backend] exposes plain values with expiry, set membership, TTL
// introspection, pattern enumeration and counters. Every [RedisBackend] call is
// bounded by a per-call deadline and a small retry budget; exhausting the
// budget surfaces as [ErrBackendUnavailable].
//
// # What this package must NOT do
//
//   - Interpret stored values (encoding belongs to the caller).
//   - Hold locks or transactions across calls.
//   - Import session, analytics, or goSession.
package kv
