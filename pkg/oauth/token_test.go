package oauth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestTokenSet_OAuth2Token(t *testing.T) {
	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := &TokenSet{
		AccessToken:  "tok",
		TokenType:    "Bearer",
		ExpiresIn:    60,
		RefreshToken: "ref",
		IDToken:      "idt",
		Scope:        "openid wsp",
		Expiry:       expiry,
	}

	tok := ts.OAuth2Token()
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "ref", tok.RefreshToken)
	assert.Equal(t, expiry, tok.Expiry)
	assert.Equal(t, int64(60), tok.ExpiresIn)
	assert.Equal(t, "idt", tok.Extra("id_token"))
	assert.Equal(t, "openid wsp", tok.Extra("scope"))
}

func TestTokenSet_OAuth2TokenWithoutExtras(t *testing.T) {
	tok := (&TokenSet{AccessToken: "tok", TokenType: "Bearer"}).OAuth2Token()
	assert.Nil(t, tok.Extra("id_token"))
	assert.True(t, tok.Valid())
}

func TestTokenSet_Expired(t *testing.T) {
	now := time.Now()
	ts := &TokenSet{Expiry: now.Add(time.Minute)}
	assert.False(t, ts.Expired(now))
	assert.True(t, ts.Expired(now.Add(2*time.Minute)))
	assert.False(t, (&TokenSet{}).Expired(now))
}

func TestTokenSet_MarshalLogObject(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	ts := &TokenSet{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 10, IDToken: "idt"}
	assert.NoError(t, ts.MarshalLogObject(enc))

	assert.Equal(t, "Bearer", enc.Fields["token_type"])
	assert.Equal(t, int64(10), enc.Fields["expires_in"])
	assert.Equal(t, true, enc.Fields["id_token"])
	assert.Equal(t, false, enc.Fields["refresh_token"])
	for _, v := range enc.Fields {
		assert.NotEqual(t, "tok", v)
		assert.NotEqual(t, "idt", v)
	}
}

func TestTokenResponse_ExpiresIn(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"3600", 3600, false},
		{"3600.0", 3600, false},
		{"2147483647", 2147483647, false},
		{"-1", 0, true},
		{"-1.5", 0, true},
		{"2147483648", 0, true},
		{"9223372036854775807", 0, true},
		{"1e20", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		r := &tokenResponse{ExpiresIn: json.Number(tt.raw)}
		got, err := r.expiresInSeconds()
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
