// Package goSession manages wallet-address sessions in a shared Redis so that
// many stateless request handlers see one consistent view of who is connected.
//
// A session is a primary record keyed by id plus an entry in a per-address
// index set. The two are written without a transaction; a periodic
// reconciliation sweep repairs any drift between them. Every write restarts
// the session TTL, so idle sessions expire on their own.
//
// [Service] is safe for concurrent use after construction through
// [Builder.Build]. Close it to stop the reconciler, the rate limiter cleanup
// and the audit dispatcher.
//
// # Architecture boundaries
//
// goSession is the public surface: [Service], [Builder], [Config] and value
// types. Persistence lives in the session and kv packages; the analytics
// package reads sessions but never writes them.
//
// # What this package must NOT do
//
//   - Verify wallet signatures. Callers create a session only after proving
//     address ownership.
//   - Expose Redis clients or the record encoding in its public API.
//   - Hold locks across backend calls.
package goSession
