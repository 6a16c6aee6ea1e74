package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/oauth"
	"github.com/jeremyhahn/go-cloudlogin/pkg/pkce"
)

// ErrInvalidConfiguration indicates missing or invalid settings.
var ErrInvalidConfiguration = errors.New("config: invalid configuration")

const (
	// DefaultCallbackTimeout bounds the wait for the browser redirect.
	DefaultCallbackTimeout = oauth.DefaultCallbackTimeout

	// DefaultHTTPTimeout bounds each outbound HTTP request.
	DefaultHTTPTimeout = 30 * time.Second
)

// Settings are the values a login needs.
type Settings struct {
	// CustomerID selects the customer whose identity configuration is used.
	CustomerID string `yaml:"customer_id"`

	// ClientID is the OAuth client identifier.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the OAuth client secret, for confidential clients.
	ClientSecret string `yaml:"client_secret"`

	// ClientAuth is none, client_secret_post or client_secret_basic.
	ClientAuth string `yaml:"client_auth"`

	// RedirectURI is the loopback redirect URI registered for the client.
	RedirectURI string `yaml:"redirect_uri"`

	// PlatformApplicationID is sent with the customer discovery request.
	PlatformApplicationID string `yaml:"platform_application_id"`

	// CustomerDiscoveryURL overrides the customer discovery URL template.
	CustomerDiscoveryURL string `yaml:"customer_discovery_url"`

	// OpenIDConfigurationURL overrides the well-known document URL.
	OpenIDConfigurationURL string `yaml:"openid_configuration_url"`

	// ApplicationIDHeader overrides the application id header name.
	ApplicationIDHeader string `yaml:"application_id_header"`

	// CallbackTimeout bounds the wait for the browser redirect.
	CallbackTimeout time.Duration `yaml:"callback_timeout"`

	// HTTPTimeout bounds each outbound HTTP request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// ChallengeEncoding is base64url (default) or hex.
	ChallengeEncoding string `yaml:"challenge_encoding"`

	// VerifyIDToken enables ID token signature and claim checks.
	VerifyIDToken bool `yaml:"verify_id_token"`

	// SkipBrowser prints the authorization URL instead of opening a browser.
	SkipBrowser bool `yaml:"skip_browser"`
}

// Default returns Settings with every optional value at its default.
func Default() *Settings {
	return &Settings{
		CustomerDiscoveryURL:   discovery.DefaultCustomerURLTemplate,
		OpenIDConfigurationURL: discovery.DefaultOpenIDConfigurationURL,
		ApplicationIDHeader:    discovery.DefaultApplicationIDHeader,
		CallbackTimeout:        DefaultCallbackTimeout,
		HTTPTimeout:            DefaultHTTPTimeout,
		ChallengeEncoding:      string(pkce.EncodingBase64URL),
	}
}

// Validate checks that the settings are complete and consistent, and fills
// in defaults for optional values left empty.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: settings are nil", ErrInvalidConfiguration)
	}

	required := []struct {
		name  string
		value string
	}{
		{"customer_id", s.CustomerID},
		{"client_id", s.ClientID},
		{"client_auth", s.ClientAuth},
		{"redirect_uri", s.RedirectURI},
		{"platform_application_id", s.PlatformApplicationID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfiguration, r.name)
		}
	}

	mode, err := oauth.ParseClientAuthMode(s.ClientAuth)
	if err != nil {
		return fmt.Errorf("%w: client_auth: %v", ErrInvalidConfiguration, err)
	}
	s.ClientAuth = string(mode)
	if mode.RequiresSecret() && s.ClientSecret == "" {
		return fmt.Errorf("%w: client_secret is required for %s", ErrInvalidConfiguration, mode)
	}

	if _, err := oauth.ParseRedirectURI(s.RedirectURI); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	enc, err := pkce.ParseEncoding(s.ChallengeEncoding)
	if err != nil {
		return fmt.Errorf("%w: challenge_encoding: %v", ErrInvalidConfiguration, err)
	}
	s.ChallengeEncoding = string(enc)

	if s.CustomerDiscoveryURL == "" {
		s.CustomerDiscoveryURL = discovery.DefaultCustomerURLTemplate
	}
	if !strings.Contains(s.CustomerDiscoveryURL, discovery.CustomerPlaceholder) {
		return fmt.Errorf("%w: customer_discovery_url must contain %s", ErrInvalidConfiguration, discovery.CustomerPlaceholder)
	}
	if s.OpenIDConfigurationURL == "" {
		s.OpenIDConfigurationURL = discovery.DefaultOpenIDConfigurationURL
	}
	if s.ApplicationIDHeader == "" {
		s.ApplicationIDHeader = discovery.DefaultApplicationIDHeader
	}

	if s.CallbackTimeout < 0 || s.HTTPTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfiguration)
	}
	if s.CallbackTimeout == 0 {
		s.CallbackTimeout = DefaultCallbackTimeout
	}
	if s.HTTPTimeout == 0 {
		s.HTTPTimeout = DefaultHTTPTimeout
	}

	return nil
}

// AuthMode returns the parsed client authentication mode. Call Validate first.
func (s *Settings) AuthMode() oauth.ClientAuthMode {
	return oauth.ClientAuthMode(s.ClientAuth)
}

// Encoding returns the parsed challenge encoding. Call Validate first.
func (s *Settings) Encoding() pkce.Encoding {
	return pkce.Encoding(s.ChallengeEncoding)
}

// Redacted returns a copy safe to print or log.
func (s *Settings) Redacted() Settings {
	c := *s
	if c.ClientSecret != "" {
		c.ClientSecret = "REDACTED"
	}
	return c
}
