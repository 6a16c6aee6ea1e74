package oauth

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// RedirectTarget is where the callback listener must bind to receive a
// redirect URI.
type RedirectTarget struct {
	// URI is the redirect URI exactly as registered with the provider.
	URI string

	// Address is the host:port to bind. "localhost" is mapped to 127.0.0.1.
	Address string

	// Path is the callback path, "/" when the URI has none.
	Path string
}

// ParseRedirectURI validates a loopback redirect URI (RFC 8252 §7.3) and
// derives the listener address from it. The URI must use http, name an
// explicit port and point at a loopback host.
func ParseRedirectURI(raw string) (*RedirectTarget, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: redirect_uri is required", ErrInvalidConfiguration)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect_uri: %v", ErrInvalidConfiguration, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("%w: redirect_uri must use http, got %q", ErrInvalidConfiguration, u.Scheme)
	}
	if u.User != nil || u.Fragment != "" {
		return nil, fmt.Errorf("%w: redirect_uri must not contain userinfo or a fragment", ErrInvalidConfiguration)
	}

	host, port := u.Hostname(), u.Port()
	if port == "" {
		return nil, fmt.Errorf("%w: redirect_uri must include an explicit port", ErrInvalidConfiguration)
	}
	if strings.EqualFold(host, "localhost") {
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return nil, fmt.Errorf("%w: redirect_uri host %q is not a loopback address", ErrInvalidConfiguration, u.Hostname())
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return &RedirectTarget{
		URI:     raw,
		Address: net.JoinHostPort(host, port),
		Path:    path,
	}, nil
}
