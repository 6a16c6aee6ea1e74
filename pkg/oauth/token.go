package oauth

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"golang.org/x/oauth2"
)

// TokenSet is the result of a successful token exchange. It is held in
// memory only.
type TokenSet struct {
	// AccessToken is the OAuth access token.
	AccessToken string

	// TokenType is the type of token, "Bearer" when the provider omits it.
	TokenType string

	// ExpiresIn is the lifetime in seconds reported by the provider, 0 if none.
	ExpiresIn int64

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// IDToken is the OpenID Connect ID token (optional).
	IDToken string

	// Scope is the space-separated scope granted, when reported.
	Scope string

	// Expiry is when the access token expires, zero if unknown.
	Expiry time.Time
}

// Expired returns true if the token has a known expiry before now.
func (t *TokenSet) Expired(now time.Time) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return now.After(t.Expiry)
}

// Scopes returns the granted scopes.
func (t *TokenSet) Scopes() []string {
	return strings.Fields(t.Scope)
}

// OAuth2Token converts the set to an *oauth2.Token. The ID token and scope
// are available through Extra("id_token") and Extra("scope").
func (t *TokenSet) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		ExpiresIn:    t.ExpiresIn,
	}
	extra := map[string]any{}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	if t.Scope != "" {
		extra["scope"] = t.Scope
	}
	return tok.WithExtra(extra)
}

// MarshalLogObject logs the set without any token values.
func (t *TokenSet) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("token_type", t.TokenType)
	enc.AddInt64("expires_in", t.ExpiresIn)
	enc.AddBool("refresh_token", t.RefreshToken != "")
	enc.AddBool("id_token", t.IDToken != "")
	if t.Scope != "" {
		enc.AddString("scope", t.Scope)
	}
	return nil
}

// tokenResponse is the token endpoint's JSON body, success or error
// (RFC 6749 §5.1, §5.2).
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	Scope        string      `json:"scope"`
	IDToken      string      `json:"id_token"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// expiresInSeconds accepts expires_in as a JSON number or a numeric string
// between 0 and math.MaxInt32.
func (r *tokenResponse) expiresInSeconds() (int64, error) {
	if r.ExpiresIn == "" {
		return 0, nil
	}
	if n, err := r.ExpiresIn.Int64(); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, fmt.Errorf("invalid expires_in %q", r.ExpiresIn)
		}
		return n, nil
	}
	f, err := r.ExpiresIn.Float64()
	if err != nil || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid expires_in %q", r.ExpiresIn)
	}
	return int64(f), nil
}
