package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xabc0000000000000000000000000000000000001"

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err, "generate ed25519 key")
	return pub, priv
}

func signClaims(t *testing.T, priv ed25519.PrivateKey, claims SessionClaims) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
	require.NoError(t, err, "sign token")
	return tok
}

func TestCreateParseRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	require.NoError(t, err)

	tok, err := m.Create("sid-1", testAddress, 8453)
	require.NoError(t, err)
	claims, err := m.Parse(tok)
	require.NoError(t, err)

	assert.Equal(t, "sid-1", claims.SID)
	assert.Equal(t, testAddress, claims.Address)
	assert.Equal(t, int64(8453), claims.ChainID)
	assert.Equal(t, testAddress, claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.LessOrEqual(t, time.Until(claims.ExpiresAt.Time), time.Minute)
}

func TestHS256RoundTripAndShortSecret(t *testing.T) {
	_, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")})
	require.Error(t, err, "short hs256 secret must be rejected")

	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	tok, err := m.Create("sid-1", testAddress, 1)
	require.NoError(t, err)
	_, err = m.Parse(tok)
	assert.NoError(t, err)
}

func TestCreateRejectsMissingIdentity(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	_, err = m.Create("", testAddress, 1)
	assert.ErrorIs(t, err, ErrMissingSessionID)
	_, err = m.Create("sid", "", 1)
	assert.ErrorIs(t, err, ErrMissingAddress)
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	_, err = m.Create("sid", testAddress, 1)
	assert.Error(t, err, "verify-only manager must refuse signing")
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	require.NoError(t, err)

	claims := SessionClaims{SID: "s1", Address: testAddress, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.Error(t, err, "wrong algorithm must be rejected")
}

func TestParseRequiresExpiryAndIdentity(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: priv.Public().(ed25519.PublicKey)})
	require.NoError(t, err)

	_, err = m.Parse(signClaims(t, priv, SessionClaims{SID: "s1", Address: testAddress}))
	assert.Error(t, err, "token without exp must fail")

	exp := gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}
	_, err = m.Parse(signClaims(t, priv, SessionClaims{Address: testAddress, RegisteredClaims: exp}))
	assert.ErrorIs(t, err, ErrMissingSessionID)
	_, err = m.Parse(signClaims(t, priv, SessionClaims{SID: "s1", RegisteredClaims: exp}))
	assert.ErrorIs(t, err, ErrMissingAddress)
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "gosession",
		Audience:      "dapp",
		Leeway:        30 * time.Second,
	})
	require.NoError(t, err)

	tok, err := m.Create("s1", testAddress, 1)
	require.NoError(t, err)
	_, err = m.Parse(tok)
	require.NoError(t, err, "valid token must parse")

	claims := func(iss, aud string, exp, iat time.Duration) SessionClaims {
		return SessionClaims{SID: "s1", Address: testAddress, RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(iat)),
		}}
	}

	_, err = m.Parse(signClaims(t, priv, claims("other", "dapp", time.Minute, 0)))
	assert.Error(t, err, "wrong issuer")
	_, err = m.Parse(signClaims(t, priv, claims("gosession", "other", time.Minute, 0)))
	assert.Error(t, err, "wrong audience")
	_, err = m.Parse(signClaims(t, priv, claims("gosession", "dapp", -15*time.Second, -time.Minute)))
	assert.NoError(t, err, "token within leeway")
	_, err = m.Parse(signClaims(t, priv, claims("gosession", "dapp", -2*time.Minute, -3*time.Minute)))
	assert.Error(t, err, "expired token")
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	require.NoError(t, err)

	claims := SessionClaims{SID: "s1", Address: testAddress, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err, "unknown kid")

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok2.Header["kid"] = "k1"
	good, err := tok2.SignedString(priv1)
	require.NoError(t, err)
	_, err = m.Parse(good)
	assert.NoError(t, err, "known kid")

	m2, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	require.NoError(t, err)
	_, err = m2.Parse(good)
	assert.Error(t, err, "mismatched key set")
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := map[string]Config{
		"zero ttl":       {SigningMethod: MethodEd25519, PublicKey: pub},
		"huge leeway":    {TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour},
		"unknown method": {TTL: time.Minute, SigningMethod: "rs256", PublicKey: pub},
		"no ed keys":     {TTL: time.Minute, SigningMethod: MethodEd25519},
		"kid not in set": {TTL: time.Minute, SigningMethod: MethodEd25519, KeyID: "x", VerifyKeys: map[string][]byte{"k1": pub}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewManager(cfg)
			assert.Error(t, err)
		})
	}
}
