package discovery

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProviderMetadata is the resolved provider configuration for one customer.
// It is immutable once returned by Resolve.
type ProviderMetadata struct {
	// CustomerID is the customer the metadata was resolved for.
	CustomerID string

	// ApplicationID is the platform application identifier sent during discovery.
	ApplicationID string

	// ACRValues are the authentication context class references to request.
	ACRValues string

	// DiscoveryEndpoint is the customer's OIDC discovery endpoint.
	DiscoveryEndpoint string

	// AuthorizationEndpoint is the provider's authorization endpoint.
	AuthorizationEndpoint string

	// TokenEndpoint is the provider's token endpoint.
	TokenEndpoint string

	// Issuer is the provider's issuer identifier, when published.
	Issuer string

	// JWKSURI is the provider's signing key set, when published.
	JWKSURI string

	// CodeChallengeMethods lists the PKCE methods the provider advertises.
	CodeChallengeMethods []string

	// ResponseModes lists the response modes the provider advertises.
	ResponseModes []string

	// ResolvedAt is when the metadata was fetched.
	ResolvedAt time.Time
}

// Validate checks that every value required to run a login is present.
func (m *ProviderMetadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: metadata is nil", ErrIncompleteMetadata)
	}

	required := []struct {
		name  string
		value string
	}{
		{"customer_id", m.CustomerID},
		{"application_id", m.ApplicationID},
		{"acr_values", m.ACRValues},
		{"discovery_endpoint", m.DiscoveryEndpoint},
		{"authorization_endpoint", m.AuthorizationEndpoint},
		{"token_endpoint", m.TokenEndpoint},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrIncompleteMetadata, r.name)
		}
	}
	return nil
}

// Expired returns true if metadata resolved at ResolvedAt is older than ttl.
func (m *ProviderMetadata) Expired(ttl time.Duration) bool {
	if m == nil || m.ResolvedAt.IsZero() {
		return true
	}
	return time.Since(m.ResolvedAt) > ttl
}

// SupportsChallengeMethod reports whether the provider advertises method.
// An empty advertisement is treated as support, since the field is optional.
func (m *ProviderMetadata) SupportsChallengeMethod(method string) bool {
	return len(m.CodeChallengeMethods) == 0 || slices.Contains(m.CodeChallengeMethods, method)
}

// SupportsResponseMode reports whether the provider advertises mode.
// An empty advertisement is treated as support, since the field is optional.
func (m *ProviderMetadata) SupportsResponseMode(mode string) bool {
	return len(m.ResponseModes) == 0 || slices.Contains(m.ResponseModes, mode)
}

func (m *ProviderMetadata) clone() *ProviderMetadata {
	c := *m
	c.CodeChallengeMethods = append([]string(nil), m.CodeChallengeMethods...)
	c.ResponseModes = append([]string(nil), m.ResponseModes...)
	return &c
}
