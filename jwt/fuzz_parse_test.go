package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// FuzzSessionTokenParse exercises the parser with arbitrary token strings.
// Goal: no panics; invalid inputs must be rejected with errors.
func FuzzSessionTokenParse(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(f, err)
	mgr, err := NewManager(Config{
		TTL:           5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		RequireIAT:    true,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	})
	require.NoError(f, err)

	validToken, err := mgr.Create("sid1", "0xabc0000000000000000000000000000000000001", 8453)
	require.NoError(f, err)

	f.Add(validToken)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJzaWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJzaWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.Parse(input)
		if err != nil {
			return
		}
		require.NotNil(t, claims)
		require.NotEmpty(t, claims.SID, "Parse accepted claims without a session id")
		require.NotEmpty(t, claims.Address, "Parse accepted claims without an address")
	})
}
