package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
)

const (
	testIssuer = "https://idp.example"
	testKID    = "test-key"
)

type testIDP struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	metadata *discovery.ProviderMetadata
}

func newTestIDP(t *testing.T) *testIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	body, err := json.Marshal(jwks)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	md := testMetadata()
	md.Issuer = testIssuer
	md.JWKSURI = srv.URL + "/jwks"

	return &testIDP{key: key, server: srv, metadata: md}
}

func (p *testIDP) sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKID
	raw, err := tok.SignedString(key)
	require.NoError(t, err)
	return raw
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"sub":   "user-1",
		"aud":   "client-1",
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
		"nonce": "nonce-1",
		"acr":   "openid-acr",
		"email": "user@example.com",
	}
}

func newTestVerifier(t *testing.T, idp *testIDP) *IDTokenVerifier {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	v, err := NewIDTokenVerifier(ctx, idp.metadata, IDTokenVerifierConfig{
		ClientID:    "client-1",
		HTTPClient:  idp.server.Client(),
		JWKSTimeout: 5 * time.Second,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return v
}

func TestIDTokenVerifier_Verify(t *testing.T) {
	idp := newTestIDP(t)
	v := newTestVerifier(t, idp)

	claims, err := v.Verify(context.Background(), idp.sign(t, idp.key, validClaims()), "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, []string{"client-1"}, claims.Audience)
	assert.Equal(t, "nonce-1", claims.Nonce)
	assert.Equal(t, "openid-acr", claims.ACR)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestIDTokenVerifier_Rejects(t *testing.T) {
	idp := newTestIDP(t)
	v := newTestVerifier(t, idp)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    *rsa.PrivateKey
		mutate func(jwt.MapClaims)
		nonce  string
		target error
	}{
		{"wrong nonce", idp.key, nil, "nonce-2", ErrInvalidNonce},
		{"missing nonce claim", idp.key, func(c jwt.MapClaims) { delete(c, "nonce") }, "nonce-1", ErrInvalidNonce},
		{"wrong issuer", idp.key, func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, "nonce-1", ErrInvalidIDToken},
		{"wrong audience", idp.key, func(c jwt.MapClaims) { c["aud"] = "other-client" }, "nonce-1", ErrInvalidIDToken},
		{"expired", idp.key, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-2 * time.Hour).Unix() }, "nonce-1", ErrInvalidIDToken},
		{"no expiry", idp.key, func(c jwt.MapClaims) { delete(c, "exp") }, "nonce-1", ErrInvalidIDToken},
		{"foreign azp", idp.key, func(c jwt.MapClaims) {
			c["aud"] = []string{"client-1", "client-2"}
			c["azp"] = "client-2"
		}, "nonce-1", ErrInvalidIDToken},
		{"bad signature", otherKey, nil, "nonce-1", ErrInvalidIDToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			_, err := v.Verify(context.Background(), idp.sign(t, tt.key, claims), tt.nonce)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidIDToken)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestIDTokenVerifier_RejectsSymmetricAlgorithm(t *testing.T) {
	idp := newTestIDP(t)
	v := newTestVerifier(t, idp)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	tok.Header["kid"] = testKID
	raw, err := tok.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw, "nonce-1")
	assert.ErrorIs(t, err, ErrInvalidIDToken)
}

func TestIDTokenVerifier_EmptyToken(t *testing.T) {
	idp := newTestIDP(t)
	v := newTestVerifier(t, idp)

	_, err := v.Verify(context.Background(), "", "nonce-1")
	assert.ErrorIs(t, err, ErrMissingIDToken)
}

func TestIDTokenVerifier_SkipsNonceWhenNotRequested(t *testing.T) {
	idp := newTestIDP(t)
	v := newTestVerifier(t, idp)

	claims := validClaims()
	delete(claims, "nonce")
	_, err := v.Verify(context.Background(), idp.sign(t, idp.key, claims), "")
	assert.NoError(t, err)
}

func TestNewIDTokenVerifier_InvalidConfig(t *testing.T) {
	md := testMetadata()

	_, err := NewIDTokenVerifier(context.Background(), md, IDTokenVerifierConfig{ClientID: "c"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "missing jwks_uri")

	md.JWKSURI = "https://idp.example/jwks"
	_, err = NewIDTokenVerifier(context.Background(), md, IDTokenVerifierConfig{ClientID: "c"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "missing issuer")

	md.Issuer = testIssuer
	_, err = NewIDTokenVerifier(context.Background(), md, IDTokenVerifierConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "missing client id")

	_, err = NewIDTokenVerifier(context.Background(), nil, IDTokenVerifierConfig{ClientID: "c"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
