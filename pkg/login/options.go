package login

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/oauth"
)

// Resolver turns a customer and application into provider metadata.
type Resolver interface {
	Resolve(ctx context.Context, customerID, applicationID string) (*discovery.ProviderMetadata, error)
}

// Authorizer performs the browser round trip and returns the code.
type Authorizer interface {
	Run(ctx context.Context, md *discovery.ProviderMetadata, clientID, redirectURI string) (*oauth.AuthorizationCode, error)
}

// Exchanger redeems an authorization code at the token endpoint.
type Exchanger interface {
	Exchange(ctx context.Context, md *discovery.ProviderMetadata, req oauth.ExchangeRequest) (*oauth.TokenSet, error)
}

// Verifier checks an ID token.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken, nonce string) (*oauth.IDTokenClaims, error)
}

// VerifierFactory builds a Verifier bound to md. ctx lives as long as the
// login that requested it.
type VerifierFactory func(ctx context.Context, md *discovery.ProviderMetadata) (Verifier, error)

// Option configures a Flow.
type Option func(*Flow) error

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) error {
		if logger == nil {
			return fmt.Errorf("%w: logger is nil", ErrInvalidOption)
		}
		f.logger = logger
		return nil
	}
}

// WithHTTPClient sets the client used for discovery, token and JWKS
// requests. Default: httpclient.New with the configured HTTP timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Flow) error {
		if client == nil {
			return fmt.Errorf("%w: http client is nil", ErrInvalidOption)
		}
		f.httpClient = client
		return nil
	}
}

// WithResolver replaces provider discovery.
func WithResolver(r Resolver) Option {
	return func(f *Flow) error {
		if r == nil {
			return fmt.Errorf("%w: resolver is nil", ErrInvalidOption)
		}
		f.resolver = r
		return nil
	}
}

// WithAuthorizer replaces the browser round trip.
func WithAuthorizer(a Authorizer) Option {
	return func(f *Flow) error {
		if a == nil {
			return fmt.Errorf("%w: authorizer is nil", ErrInvalidOption)
		}
		f.authorizer = a
		return nil
	}
}

// WithExchanger replaces the token exchange.
func WithExchanger(e Exchanger) Option {
	return func(f *Flow) error {
		if e == nil {
			return fmt.Errorf("%w: exchanger is nil", ErrInvalidOption)
		}
		f.exchanger = e
		return nil
	}
}

// WithVerifierFactory replaces ID token verification. It is only used when
// verification is enabled in the settings.
func WithVerifierFactory(factory VerifierFactory) Option {
	return func(f *Flow) error {
		if factory == nil {
			return fmt.Errorf("%w: verifier factory is nil", ErrInvalidOption)
		}
		f.newVerifier = factory
		return nil
	}
}

// WithLauncher sets the function that opens the browser.
func WithLauncher(launcher oauth.Launcher) Option {
	return func(f *Flow) error {
		if launcher == nil {
			return fmt.Errorf("%w: launcher is nil", ErrInvalidOption)
		}
		f.launcher = launcher
		return nil
	}
}

// WithURLNotifier sets where the authorization URL goes when no browser is
// opened.
func WithURLNotifier(notifier oauth.URLNotifier) Option {
	return func(f *Flow) error {
		if notifier == nil {
			return fmt.Errorf("%w: url notifier is nil", ErrInvalidOption)
		}
		f.notifier = notifier
		return nil
	}
}

// WithParams overrides the authorization request parameters.
func WithParams(p oauth.Params) Option {
	return func(f *Flow) error {
		f.params = &p
		return nil
	}
}
