package oauth

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/pkce"
)

const (
	// DefaultCallbackTimeout bounds how long Run waits for the browser redirect.
	DefaultCallbackTimeout = 10 * time.Minute

	// DefaultShutdownGrace bounds graceful shutdown of the callback listener.
	DefaultShutdownGrace = 2 * time.Second
)

// ClientAuthMode selects how the client authenticates at the token endpoint.
type ClientAuthMode string

const (
	// ClientAuthNone is a public client: no secret is sent.
	ClientAuthNone ClientAuthMode = "none"

	// ClientAuthSecretPost sends client_secret in the form body.
	ClientAuthSecretPost ClientAuthMode = "client_secret_post"

	// ClientAuthSecretBasic sends the credentials with HTTP Basic
	// authentication (RFC 6749 §2.3.1).
	ClientAuthSecretBasic ClientAuthMode = "client_secret_basic"
)

// ParseClientAuthMode parses a client authentication mode name.
func ParseClientAuthMode(s string) (ClientAuthMode, error) {
	switch m := ClientAuthMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ClientAuthNone, ClientAuthSecretPost, ClientAuthSecretBasic:
		return m, nil
	case "":
		return "", fmt.Errorf("%w: client auth mode is required", ErrInvalidConfiguration)
	default:
		return "", fmt.Errorf("%w: unknown client auth mode %q", ErrInvalidConfiguration, s)
	}
}

// RequiresSecret reports whether the mode sends a client secret.
func (m ClientAuthMode) RequiresSecret() bool {
	return m == ClientAuthSecretPost || m == ClientAuthSecretBasic
}

// Params are the protocol parameters of the authorization request.
type Params struct {
	// ResponseType is the OAuth response_type.
	ResponseType string

	// Scopes are joined with spaces into the scope parameter.
	Scopes []string

	// Prompt is the OIDC prompt parameter. Empty omits it.
	Prompt string

	// ResponseMode is the OAuth response_mode. Empty omits it.
	ResponseMode string

	// ChallengeEncoding selects how the PKCE challenge is encoded.
	ChallengeEncoding pkce.Encoding
}

// DefaultParams returns the parameters the platform's identity provider expects.
func DefaultParams() Params {
	return Params{
		ResponseType:      "code",
		Scopes:            []string{oidc.ScopeOpenID, "wsp", "spa", "leases"},
		Prompt:            "Login",
		ResponseMode:      "form_post",
		ChallengeEncoding: pkce.EncodingBase64URL,
	}
}

// Scope returns the space-separated scope parameter.
func (p Params) Scope() string {
	return strings.Join(p.Scopes, " ")
}

func (p Params) clone() Params {
	p.Scopes = slices.Clone(p.Scopes)
	return p
}

// Launcher opens url in the user's browser.
type Launcher func(url string) error

// URLNotifier is told the authorization URL when the browser is skipped or
// could not be launched, so the user can open it by hand.
type URLNotifier func(url string)

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	// Params are the authorization request parameters. Zero value: DefaultParams.
	Params *Params

	// CallbackTimeout bounds the wait for the browser redirect.
	// Default: DefaultCallbackTimeout.
	CallbackTimeout time.Duration

	// ShutdownGrace bounds graceful shutdown of the callback listener.
	// Default: DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Launcher opens the browser. Default: browser.OpenURL.
	Launcher Launcher

	// SkipBrowser never calls Launcher; the URL only goes to URLNotifier.
	SkipBrowser bool

	// URLNotifier receives the authorization URL when the browser is not
	// used. Default: print to stderr.
	URLNotifier URLNotifier

	// Logger receives orchestrator logs. Default: no-op.
	Logger *zap.Logger
}

// Validate checks the configuration and applies defaults.
func (c *OrchestratorConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if c.Params == nil {
		p := DefaultParams()
		c.Params = &p
	}
	if strings.TrimSpace(c.Params.ResponseType) == "" {
		return fmt.Errorf("%w: response_type is required", ErrInvalidConfiguration)
	}
	if !slices.Contains(c.Params.Scopes, oidc.ScopeOpenID) {
		return fmt.Errorf("%w: scopes must include %s", ErrInvalidConfiguration, oidc.ScopeOpenID)
	}
	if _, err := pkce.ParseEncoding(string(c.Params.ChallengeEncoding)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = DefaultCallbackTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Launcher == nil {
		c.Launcher = browser.OpenURL
	}
	if c.URLNotifier == nil {
		c.URLNotifier = func(url string) {
			fmt.Fprintf(os.Stderr, "Open the following URL in your browser to sign in:\n\n    %s\n\n", url)
		}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
