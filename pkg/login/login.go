package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/config"
	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/httpclient"
	"github.com/jeremyhahn/go-cloudlogin/pkg/oauth"
)

// Result is the outcome of a successful login.
type Result struct {
	// Tokens are the tokens issued by the provider.
	Tokens *oauth.TokenSet

	// Metadata is the provider configuration the login used.
	Metadata *discovery.ProviderMetadata

	// IDClaims are the verified ID token claims. Nil unless verification
	// is enabled.
	IDClaims *oauth.IDTokenClaims

	// FlowID correlates the log lines of this login.
	FlowID string
}

// Flow runs logins for one set of settings. Logins on the same Flow are
// serialized, so a second login never overlaps the first one's callback
// listener.
type Flow struct {
	settings config.Settings
	logger   *zap.Logger

	httpClient  *http.Client
	resolver    Resolver
	authorizer  Authorizer
	exchanger   Exchanger
	newVerifier VerifierFactory
	launcher    oauth.Launcher
	notifier    oauth.URLNotifier
	params      *oauth.Params

	mu    sync.Mutex
	ready bool
}

// New creates a Flow. Settings are validated by Login, not here, so a
// configuration problem is reported as a configuration stage failure.
func New(settings *config.Settings, opts ...Option) (*Flow, error) {
	f := &Flow{logger: zap.NewNop()}
	if settings != nil {
		f.settings = *settings
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.Named("login")
	return f, nil
}

// Login performs discovery, authorization, token exchange and optional ID
// token verification. Any failure is a *StageError.
func (f *Flow) Login(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	flowID := uuid.NewString()
	logger := f.logger.With(zap.String("flow_id", flowID))
	start := time.Now()

	if err := f.setup(); err != nil {
		logger.Error("login configuration invalid", zap.Error(err))
		return nil, stageError(StageConfiguration, err)
	}
	s := &f.settings

	logger.Info("login started",
		zap.String("customer_id", s.CustomerID),
		zap.String("client_id", s.ClientID),
		zap.String("client_auth", s.ClientAuth))

	md, err := f.resolver.Resolve(ctx, s.CustomerID, s.PlatformApplicationID)
	if err != nil {
		logger.Error("provider discovery failed", zap.Error(err))
		return nil, stageError(StageDiscovery, err)
	}
	logger.Debug("provider resolved",
		zap.String("issuer", md.Issuer),
		zap.String("authorization_endpoint", md.AuthorizationEndpoint),
		zap.String("token_endpoint", md.TokenEndpoint))

	code, err := f.authorizer.Run(ctx, md, s.ClientID, s.RedirectURI)
	if err != nil {
		logger.Error("authorization failed", zap.Error(err))
		return nil, stageError(StageAuthorization, err)
	}

	tokens, err := f.exchanger.Exchange(ctx, md, oauth.ExchangeRequest{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURI:  code.RedirectURI,
		Code:         code.Code,
		CodeVerifier: code.CodeVerifier,
	})
	if err != nil {
		logger.Error("token exchange failed", zap.Error(err))
		return nil, stageError(StageTokenExchange, err)
	}

	result := &Result{Tokens: tokens, Metadata: md, FlowID: flowID}

	if s.VerifyIDToken {
		claims, err := f.verifyIDToken(ctx, md, tokens.IDToken, code.Nonce)
		if err != nil {
			logger.Error("id token rejected", zap.Error(err))
			return nil, stageError(StageIDToken, err)
		}
		result.IDClaims = claims
		logger.Debug("id token verified", zap.String("subject", claims.Subject))
	}

	logger.Info("login complete",
		zap.Object("tokens", tokens),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// setup validates the settings and builds any component not supplied as
// an option. It runs once per Flow.
func (f *Flow) setup() error {
	if f.ready {
		return nil
	}
	if err := f.settings.Validate(); err != nil {
		return err
	}
	s := &f.settings

	if f.httpClient == nil {
		f.httpClient = httpclient.New(httpclient.Options{Timeout: s.HTTPTimeout})
	}

	if f.resolver == nil {
		r, err := discovery.NewResolver(discovery.Config{
			CustomerURLTemplate:    s.CustomerDiscoveryURL,
			OpenIDConfigurationURL: s.OpenIDConfigurationURL,
			ApplicationIDHeader:    s.ApplicationIDHeader,
			HTTPClient:             f.httpClient,
			Logger:                 f.logger,
		})
		if err != nil {
			return err
		}
		f.resolver = r
	}

	if f.authorizer == nil {
		params := oauth.DefaultParams()
		if enc := s.Encoding(); enc != "" {
			params.ChallengeEncoding = enc
		}
		if f.params != nil {
			params = *f.params
			if params.ChallengeEncoding == "" {
				params.ChallengeEncoding = s.Encoding()
			}
		}
		o, err := oauth.NewOrchestrator(oauth.OrchestratorConfig{
			Params:          &params,
			CallbackTimeout: s.CallbackTimeout,
			Launcher:        f.launcher,
			SkipBrowser:     s.SkipBrowser,
			URLNotifier:     f.notifier,
			Logger:          f.logger,
		})
		if err != nil {
			return err
		}
		f.authorizer = o
	}

	if f.exchanger == nil {
		c, err := oauth.NewTokenClient(oauth.TokenClientConfig{
			AuthMode:   s.AuthMode(),
			HTTPClient: f.httpClient,
			Logger:     f.logger,
		})
		if err != nil {
			return err
		}
		f.exchanger = c
	}

	if f.newVerifier == nil {
		client, logger, clientID := f.httpClient, f.logger, s.ClientID
		f.newVerifier = func(ctx context.Context, md *discovery.ProviderMetadata) (Verifier, error) {
			return oauth.NewIDTokenVerifier(ctx, md, oauth.IDTokenVerifierConfig{
				ClientID:   clientID,
				HTTPClient: client,
				Logger:     logger,
			})
		}
	}

	f.ready = true
	return nil
}

func (f *Flow) verifyIDToken(ctx context.Context, md *discovery.ProviderMetadata, raw, nonce string) (*oauth.IDTokenClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: token response carried no id_token", oauth.ErrMissingIDToken)
	}
	v, err := f.newVerifier(ctx, md)
	if err != nil {
		return nil, err
	}
	claims, err := v.Verify(ctx, raw, nonce)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, errors.New("login: verifier returned no claims")
	}
	return claims, nil
}
