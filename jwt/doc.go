// Package jwt signs and verifies session tokens: short-lived JWTs that carry
// a session id, wallet address and chain id.
//
// A token is a bearer handle to a stored session, not a credential on its
// own. Holders must resolve the session id against the store before trusting
// the claims.
package jwt
