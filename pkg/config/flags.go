package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flag names, mirroring the YAML keys with dashes.
const (
	FlagCustomerID             = "customer-id"
	FlagClientID               = "client-id"
	FlagClientSecret           = "client-secret"
	FlagClientAuth             = "client-auth"
	FlagRedirectURI            = "redirect-uri"
	FlagApplicationID          = "application-id"
	FlagCustomerDiscoveryURL   = "customer-discovery-url"
	FlagOpenIDConfigurationURL = "openid-configuration-url"
	FlagApplicationIDHeader    = "application-id-header"
	FlagCallbackTimeout        = "callback-timeout"
	FlagHTTPTimeout            = "http-timeout"
	FlagChallengeEncoding      = "challenge-encoding"
	FlagVerifyIDToken          = "verify-id-token"
	FlagSkipBrowser            = "skip-browser"
)

// BindFlags registers a flag for every setting on fs. Flag defaults are
// zero values so that only flags the user sets override other sources.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagCustomerID, "", "customer identifier")
	fs.String(FlagClientID, "", "OAuth client identifier")
	fs.String(FlagClientSecret, "", "OAuth client secret (confidential clients)")
	fs.String(FlagClientAuth, "", "client authentication: none, client_secret_post or client_secret_basic")
	fs.String(FlagRedirectURI, "", "loopback redirect URI, e.g. http://localhost:8400/callback")
	fs.String(FlagApplicationID, "", "platform application identifier sent during discovery")
	fs.String(FlagCustomerDiscoveryURL, "", "customer discovery URL template containing {customer}")
	fs.String(FlagOpenIDConfigurationURL, "", "OpenID configuration document URL")
	fs.String(FlagApplicationIDHeader, "", "header carrying the platform application identifier")
	fs.Duration(FlagCallbackTimeout, 0, "how long to wait for the browser redirect (default 10m)")
	fs.Duration(FlagHTTPTimeout, 0, "timeout for each outbound HTTP request (default 30s)")
	fs.String(FlagChallengeEncoding, "", "PKCE challenge encoding: base64url or hex")
	fs.Bool(FlagVerifyIDToken, false, "verify the ID token signature and claims")
	fs.Bool(FlagSkipBrowser, false, "print the sign-in URL instead of opening a browser")
}

// ApplyFlags copies every flag the user set on fs into s.
func ApplyFlags(s *Settings, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagCustomerID:             &s.CustomerID,
		FlagClientID:               &s.ClientID,
		FlagClientSecret:           &s.ClientSecret,
		FlagClientAuth:             &s.ClientAuth,
		FlagRedirectURI:            &s.RedirectURI,
		FlagApplicationID:          &s.PlatformApplicationID,
		FlagCustomerDiscoveryURL:   &s.CustomerDiscoveryURL,
		FlagOpenIDConfigurationURL: &s.OpenIDConfigurationURL,
		FlagApplicationIDHeader:    &s.ApplicationIDHeader,
		FlagChallengeEncoding:      &s.ChallengeEncoding,
	}
	for name, dst := range strs {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		FlagCallbackTimeout: &s.CallbackTimeout,
		FlagHTTPTimeout:     &s.HTTPTimeout,
	}
	for name, dst := range durations {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		FlagVerifyIDToken: &s.VerifyIDToken,
		FlagSkipBrowser:   &s.SkipBrowser,
	}
	for name, dst := range bools {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
