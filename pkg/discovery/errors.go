package discovery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDiscovery matches every error returned by Resolve.
	ErrDiscovery = errors.New("discovery: failed")

	// ErrInvalidConfiguration indicates the resolver configuration is invalid.
	ErrInvalidConfiguration = errors.New("discovery: invalid configuration")

	// ErrInvalidInput indicates an empty or malformed customer or application id.
	ErrInvalidInput = errors.New("discovery: invalid input")

	// ErrTransport indicates the request could not be sent or the body not read.
	ErrTransport = errors.New("discovery: transport failure")

	// ErrUnexpectedStatus indicates a non-200 response.
	ErrUnexpectedStatus = errors.New("discovery: unexpected status")

	// ErrMalformedDocument indicates the response body is not valid JSON.
	ErrMalformedDocument = errors.New("discovery: malformed document")

	// ErrMissingField indicates a required field is absent, empty or not a string.
	ErrMissingField = errors.New("discovery: missing or invalid field")

	// ErrIncompleteMetadata indicates ProviderMetadata lacks a required value.
	ErrIncompleteMetadata = errors.New("discovery: incomplete provider metadata")
)

// Step identifies which discovery request failed.
type Step string

const (
	// StepInput is argument validation before any request.
	StepInput Step = "input"

	// StepCustomerConfiguration is the customer-scoped discovery request.
	StepCustomerConfiguration Step = "customer_configuration"

	// StepOpenIDConfiguration is the well-known OpenID configuration request.
	StepOpenIDConfiguration Step = "openid_configuration"
)

// Error describes a failed discovery step.
type Error struct {
	// Step is the request that failed.
	Step Step

	// URL is the requested URL, when one was built.
	URL string

	// Field is the JSON path of the offending field, if any.
	Field string

	// StatusCode is the HTTP status for ErrUnexpectedStatus.
	StatusCode int

	// Err is the underlying cause; it wraps one of the sentinel errors.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "discovery %s", e.Step)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrDiscovery as a match so callers can test for any discovery failure.
func (e *Error) Is(target error) bool {
	return target == ErrDiscovery
}
