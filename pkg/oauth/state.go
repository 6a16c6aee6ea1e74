package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-cloudlogin/pkg/pkce"
)

// stateBytes is the amount of entropy in state and nonce values.
const stateBytes = 16

// AuthorizationState is the per-login secret material: the CSRF state, the
// OIDC nonce and the PKCE pair. A fresh value is generated for every Run.
type AuthorizationState struct {
	State string
	Nonce string
	PKCE  pkce.Pair
}

// NewAuthorizationState generates state, nonce and a PKCE pair whose
// challenge uses enc.
func NewAuthorizationState(enc pkce.Encoding) (*AuthorizationState, error) {
	state, err := randomHex(stateBytes)
	if err != nil {
		return nil, fmt.Errorf("oauth: failed to generate state: %w", err)
	}
	nonce, err := randomHex(stateBytes)
	if err != nil {
		return nil, fmt.Errorf("oauth: failed to generate nonce: %w", err)
	}
	pair, err := pkce.GenerateWithEncoding(enc)
	if err != nil {
		return nil, fmt.Errorf("oauth: failed to generate pkce pair: %w", err)
	}
	return &AuthorizationState{State: state, Nonce: nonce, PKCE: pair}, nil
}

// ValidateState compares the state returned by the provider with the one
// sent, in constant time.
func (s *AuthorizationState) ValidateState(returned string) error {
	if subtle.ConstantTimeCompare([]byte(s.State), []byte(returned)) != 1 {
		return &StateMismatchError{Received: returned}
	}
	return nil
}

// ValidateNonce compares an ID token nonce with the one sent, in constant time.
func (s *AuthorizationState) ValidateNonce(returned string) error {
	return validateNonce(s.Nonce, returned)
}

func validateNonce(expected, returned string) error {
	if expected == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(returned)) != 1 {
		return ErrInvalidNonce
	}
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
