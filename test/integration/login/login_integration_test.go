//go:build integration

package login_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/config"
	"github.com/jeremyhahn/go-cloudlogin/pkg/login"
	"github.com/jeremyhahn/go-cloudlogin/pkg/oauth"
	"github.com/jeremyhahn/go-cloudlogin/pkg/pkce"
)

const (
	clientID     = "integration-client"
	clientSecret = "integration-secret"
	keyID        = "integration-key"
)

type pendingCode struct {
	challenge   string
	redirectURI string
	nonce       string
}

// identityProvider is an in-process provider serving customer discovery,
// the well-known document, the authorization and token endpoints and the
// JWKS.
type identityProvider struct {
	t        *testing.T
	server   *httptest.Server
	key      *rsa.PrivateKey
	encoding pkce.Encoding
	authMode oauth.ClientAuthMode

	mu    sync.Mutex
	codes map[string]pendingCode
}

func newIdentityProvider(t *testing.T, enc pkce.Encoding, mode oauth.ClientAuthMode) *identityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &identityProvider{t: t, key: key, encoding: enc, authMode: mode, codes: map[string]pendingCode{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /customers/{customer}", p.customer)
	mux.HandleFunc("GET /.well-known/openid-configuration", p.wellKnown)
	mux.HandleFunc("GET /authorize", p.authorize)
	mux.HandleFunc("POST /token", p.token)
	mux.HandleFunc("GET /jwks", p.jwks)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *identityProvider) url() string { return p.server.URL }

func (p *identityProvider) customer(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Citrix-ApplicationId") == "" {
		http.Error(w, "missing application id", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clientSettings": map[string]any{
			"acr_values":        "customer-" + r.PathValue("customer"),
			"oidcConfiguration": map[string]string{"oidc_discovery_endpoint": p.url() + "/.well-known/openid-configuration"},
		},
	})
}

func (p *identityProvider) wellKnown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                           p.url(),
		"authorization_endpoint":           p.url() + "/authorize",
		"token_endpoint":                   p.url() + "/token",
		"jwks_uri":                         p.url() + "/jwks",
		"response_modes_supported":         []string{"query", "form_post"},
		"code_challenge_methods_supported": []string{"S256"},
	})
}

// authorize skips the sign-in page and answers with the form a browser
// would auto-submit to the redirect URI.
func (p *identityProvider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != clientID || q.Get("code_challenge_method") != pkce.MethodS256 || q.Get("code_challenge") == "" {
		http.Error(w, "invalid authorization request", http.StatusBadRequest)
		return
	}
	code := strconv.FormatInt(time.Now().UnixNano(), 36)
	p.mu.Lock()
	p.codes[code] = pendingCode{
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
		nonce:       q.Get("nonce"),
	}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"action":        q.Get("redirect_uri"),
		"response_mode": q.Get("response_mode"),
		"code":          code,
		"state":         q.Get("state"),
	})
}

func (p *identityProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if !p.authenticated(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")
	p.mu.Lock()
	pending, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "unknown code"})
		return
	case pending.redirectURI != r.PostForm.Get("redirect_uri"):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "redirect_uri mismatch"})
		return
	case !pkce.Verify(r.PostForm.Get("code_verifier"), pending.challenge, p.encoding):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "code_verifier mismatch"})
		return
	}

	now := time.Now()
	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   p.url(),
		"sub":   "user-42",
		"aud":   clientID,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": pending.nonce,
		"email": "user42@example.com",
	})
	idToken.Header["kid"] = keyID
	raw, err := idToken.SignedString(p.key)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "access-" + code,
		"token_type":    "Bearer",
		"expires_in":    "3600",
		"refresh_token": "refresh-" + code,
		"id_token":      raw,
		"scope":         "openid wsp spa leases",
	})
}

func (p *identityProvider) authenticated(r *http.Request) bool {
	switch p.authMode {
	case oauth.ClientAuthSecretBasic:
		user, pass, ok := r.BasicAuth()
		return ok && user == clientID && pass == clientSecret
	case oauth.ClientAuthSecretPost:
		return r.PostForm.Get("client_id") == clientID && r.PostForm.Get("client_secret") == clientSecret
	default:
		return r.PostForm.Get("client_id") == clientID && !r.PostForm.Has("client_secret")
	}
}

func (p *identityProvider) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(p.key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.key.PublicKey.E)).Bytes()),
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// browser follows the authorization URL and submits the provider's answer
// to the callback listener the way form_post does.
func browser(t *testing.T) oauth.Launcher {
	return func(authURL string) error {
		go func() {
			resp, err := http.Get(authURL)
			if err != nil {
				return
			}
			defer resp.Body.Close()

			var answer map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
				return
			}
			form := url.Values{"code": {answer["code"]}, "state": {answer["state"]}}
			var cb *http.Response
			if answer["response_mode"] == "form_post" {
				cb, err = http.PostForm(answer["action"], form)
			} else {
				cb, err = http.Get(answer["action"] + "?" + form.Encode())
			}
			if err == nil {
				cb.Body.Close()
			}
		}()
		return nil
	}
}

func redirectURI(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return "http://localhost:" + strconv.Itoa(port) + "/callback"
}

func settingsFor(t *testing.T, p *identityProvider, mode oauth.ClientAuthMode) *config.Settings {
	s := config.Default()
	s.CustomerID = "acme"
	s.ClientID = clientID
	s.ClientAuth = string(mode)
	if mode.RequiresSecret() {
		s.ClientSecret = clientSecret
	}
	s.RedirectURI = redirectURI(t)
	s.PlatformApplicationID = "integration-app"
	s.CustomerDiscoveryURL = p.url() + "/customers/{customer}"
	s.OpenIDConfigurationURL = p.url() + "/.well-known/openid-configuration"
	s.ChallengeEncoding = string(p.encoding)
	s.VerifyIDToken = true
	s.CallbackTimeout = 30 * time.Second
	return s
}

func TestLoginIntegration_ClientAuthModes(t *testing.T) {
	modes := []oauth.ClientAuthMode{oauth.ClientAuthNone, oauth.ClientAuthSecretPost, oauth.ClientAuthSecretBasic}
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			p := newIdentityProvider(t, pkce.EncodingBase64URL, mode)
			flow, err := login.New(settingsFor(t, p, mode),
				login.WithLogger(zap.NewNop()),
				login.WithLauncher(browser(t)))
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			result, err := flow.Login(ctx)
			require.NoError(t, err)

			assert.Equal(t, "customer-acme", result.Metadata.ACRValues)
			assert.Contains(t, result.Tokens.AccessToken, "access-")
			assert.Equal(t, int64(3600), result.Tokens.ExpiresIn)
			assert.Equal(t, []string{"openid", "wsp", "spa", "leases"}, result.Tokens.Scopes())
			require.NotNil(t, result.IDClaims)
			assert.Equal(t, "user-42", result.IDClaims.Subject)
			assert.Equal(t, "user42@example.com", result.IDClaims.Email)
		})
	}
}

func TestLoginIntegration_HexChallenge(t *testing.T) {
	p := newIdentityProvider(t, pkce.EncodingHex, oauth.ClientAuthNone)
	flow, err := login.New(settingsFor(t, p, oauth.ClientAuthNone), login.WithLauncher(browser(t)))
	require.NoError(t, err)

	_, err = flow.Login(context.Background())
	require.NoError(t, err)
}

func TestLoginIntegration_EncodingMismatchFailsExchange(t *testing.T) {
	p := newIdentityProvider(t, pkce.EncodingHex, oauth.ClientAuthNone)
	s := settingsFor(t, p, oauth.ClientAuthNone)
	s.ChallengeEncoding = string(pkce.EncodingBase64URL)

	flow, err := login.New(s, login.WithLauncher(browser(t)))
	require.NoError(t, err)

	_, err = flow.Login(context.Background())
	var stageErr *login.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, login.StageTokenExchange, stageErr.Stage)

	var exErr *oauth.TokenExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "invalid_grant", exErr.ErrorCode)
	assert.Equal(t, "code_verifier mismatch", exErr.Description)
}

func TestLoginIntegration_RepeatedLogins(t *testing.T) {
	p := newIdentityProvider(t, pkce.EncodingBase64URL, oauth.ClientAuthNone)
	flow, err := login.New(settingsFor(t, p, oauth.ClientAuthNone), login.WithLauncher(browser(t)))
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		result, err := flow.Login(context.Background())
		require.NoError(t, err, "login %d", i)
		assert.False(t, seen[result.Tokens.AccessToken], "codes are single use")
		seen[result.Tokens.AccessToken] = true
	}
}

func TestLoginIntegration_Timeout(t *testing.T) {
	p := newIdentityProvider(t, pkce.EncodingBase64URL, oauth.ClientAuthNone)
	s := settingsFor(t, p, oauth.ClientAuthNone)
	s.CallbackTimeout = 200 * time.Millisecond

	flow, err := login.New(s,
		login.WithLauncher(func(string) error { return nil }),
		login.WithURLNotifier(func(string) {}))
	require.NoError(t, err)

	_, err = flow.Login(context.Background())
	assert.ErrorIs(t, err, oauth.ErrListenerTimeout)

	var stageErr *login.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, login.StageAuthorization, stageErr.Stage)
}
