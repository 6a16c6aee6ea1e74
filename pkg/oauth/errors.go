package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates the orchestrator, token client or
	// verifier configuration is invalid, or required inputs are missing.
	ErrInvalidConfiguration = errors.New("oauth: invalid configuration")

	// ErrBrowserLaunch indicates the browser could not be opened. It is
	// logged and never returned from Run; the user opens the URL by hand.
	ErrBrowserLaunch = errors.New("oauth: failed to launch browser")

	// ErrListenerTimeout indicates no callback arrived within the timeout.
	ErrListenerTimeout = errors.New("oauth: timed out waiting for authorization callback")

	// ErrNoCodeReturned indicates the callback carried no authorization code.
	ErrNoCodeReturned = errors.New("oauth: no authorization code returned")

	// ErrStateMismatch indicates the returned state does not match the one sent.
	ErrStateMismatch = errors.New("oauth: state mismatch")

	// ErrTokenExchange indicates the token endpoint did not return tokens.
	ErrTokenExchange = errors.New("oauth: token exchange failed")

	// ErrMissingIDToken indicates verification was requested but the token
	// response carried no id_token.
	ErrMissingIDToken = errors.New("oauth: missing id token")

	// ErrInvalidIDToken indicates the ID token failed signature or claim checks.
	ErrInvalidIDToken = errors.New("oauth: invalid id token")

	// ErrInvalidNonce indicates the ID token nonce does not match the one sent.
	ErrInvalidNonce = errors.New("oauth: invalid nonce")
)

// NoCodeReturnedError is returned when the callback request carried no code,
// either because the provider reported an error or because the request was
// malformed.
type NoCodeReturnedError struct {
	// ErrorCode is the provider's error parameter, or "missing code".
	ErrorCode string

	// Description is the provider's error_description, if any.
	Description string
}

func (e *NoCodeReturnedError) Error() string {
	msg := ErrNoCodeReturned.Error()
	if e.ErrorCode != "" {
		msg += ": " + e.ErrorCode
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Is matches ErrNoCodeReturned.
func (e *NoCodeReturnedError) Is(target error) bool {
	return target == ErrNoCodeReturned
}

// StateMismatchError is returned when the callback state differs from the
// state sent in the authorization request. The expected value is never
// included.
type StateMismatchError struct {
	// Received is the state the callback carried, possibly empty.
	Received string
}

func (e *StateMismatchError) Error() string {
	if e.Received == "" {
		return ErrStateMismatch.Error() + ": callback carried no state"
	}
	return ErrStateMismatch.Error()
}

// Is matches ErrStateMismatch.
func (e *StateMismatchError) Is(target error) bool {
	return target == ErrStateMismatch
}

// TokenExchangeError describes a failed token request. For transport
// failures StatusCode is zero and Err holds the cause.
type TokenExchangeError struct {
	// StatusCode is the HTTP status returned by the token endpoint.
	StatusCode int

	// ErrorCode is the OAuth error code from the response body (RFC 6749 §5.2).
	ErrorCode string

	// Description is the error_description from the response body.
	Description string

	// Body is the raw response body, truncated.
	Body string

	// Err is the underlying cause for transport and decoding failures.
	Err error
}

func (e *TokenExchangeError) Error() string {
	msg := ErrTokenExchange.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	switch {
	case e.ErrorCode != "" && e.Description != "":
		msg += ": " + e.ErrorCode + ": " + e.Description
	case e.ErrorCode != "":
		msg += ": " + e.ErrorCode
	case e.Body != "":
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// Is matches ErrTokenExchange.
func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchange
}
