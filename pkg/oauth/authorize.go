package oauth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jeremyhahn/go-cloudlogin/pkg/callback"
	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/pkce"
)

// AuthorizationCode is the outcome of a successful Run: the code plus the
// values the token exchange and ID token check need.
type AuthorizationCode struct {
	Code         string
	State        string
	RedirectURI  string
	CodeVerifier string
	Nonce        string
}

// Orchestrator drives the interactive part of the authorization code flow:
// it starts the callback listener, sends the user to the provider and waits
// for the redirect. One Run executes at a time per Orchestrator.
type Orchestrator struct {
	config OrchestratorConfig
	params Params
	logger *zap.Logger

	mu       sync.Mutex
	newState func(pkce.Encoding) (*AuthorizationState, error)
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		config:   config,
		params:   config.Params.clone(),
		logger:   config.Logger.Named("authorize"),
		newState: NewAuthorizationState,
	}, nil
}

// Params returns a copy of the authorization request parameters.
func (o *Orchestrator) Params() Params {
	return o.params.clone()
}

// Run performs one authorization round trip and returns the authorization
// code. The callback listener is shut down, and its port released, before
// Run returns.
func (o *Orchestrator) Run(ctx context.Context, md *discovery.ProviderMetadata, clientID, redirectURI string) (*AuthorizationCode, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	}
	target, err := ParseRedirectURI(redirectURI)
	if err != nil {
		return nil, err
	}
	if !md.SupportsChallengeMethod(pkce.MethodS256) {
		o.logger.Warn("provider does not advertise S256, sending it anyway")
	}

	st, err := o.newState(o.params.ChallengeEncoding)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener, err := callback.Start(runCtx, callback.Config{
		Address:       target.Address,
		Path:          target.Path,
		ShutdownGrace: o.config.ShutdownGrace,
		Logger:        o.config.Logger,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := listener.Shutdown(context.Background()); err != nil {
			o.logger.Warn("callback listener shutdown failed", zap.Error(err))
		}
	}()

	authURL := o.AuthorizationURL(md, clientID, target.URI, st)
	o.logger.Debug("authorization request prepared",
		zap.String("authorization_endpoint", md.AuthorizationEndpoint),
		zap.String("redirect_uri", target.URI),
		zap.String("scope", o.params.Scope()))

	o.openBrowser(authURL)

	timer := time.NewTimer(o.config.CallbackTimeout)
	defer timer.Stop()

	select {
	case <-listener.Result().Done():
	case <-timer.C:
		o.logger.Warn("no authorization callback received", zap.Duration("timeout", o.config.CallbackTimeout))
		return nil, fmt.Errorf("%w after %s", ErrListenerTimeout, o.config.CallbackTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("oauth: authorization canceled: %w", ctx.Err())
	}

	res, _ := listener.Result().Get()
	if res.Code == "" {
		o.logger.Warn("authorization callback carried no code",
			zap.String("error", res.Error),
			zap.String("error_description", res.ErrorDescription))
		return nil, &NoCodeReturnedError{ErrorCode: res.Error, Description: res.ErrorDescription}
	}
	if err := st.ValidateState(res.State); err != nil {
		o.logger.Warn("authorization callback state mismatch", zap.Bool("state_present", res.State != ""))
		return nil, err
	}

	o.logger.Info("authorization code received")

	return &AuthorizationCode{
		Code:         res.Code,
		State:        res.State,
		RedirectURI:  target.URI,
		CodeVerifier: st.PKCE.Verifier,
		Nonce:        st.Nonce,
	}, nil
}

// AuthorizationURL builds the authorization request URL for st.
func (o *Orchestrator) AuthorizationURL(md *discovery.ProviderMetadata, clientID, redirectURI string, st *AuthorizationState) string {
	cfg := oauth2.Config{
		ClientID:    clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: md.AuthorizationEndpoint, TokenURL: md.TokenEndpoint},
		RedirectURL: redirectURI,
		Scopes:      o.params.Scopes,
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("acr_values", md.ACRValues),
		oauth2.SetAuthURLParam("code_challenge", st.PKCE.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", st.PKCE.Method),
		oidc.Nonce(st.Nonce),
	}
	if o.params.ResponseType != "code" {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", o.params.ResponseType))
	}
	if o.params.Prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", o.params.Prompt))
	}
	if o.params.ResponseMode != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", o.params.ResponseMode))
	}

	return cfg.AuthCodeURL(st.State, opts...)
}

func (o *Orchestrator) openBrowser(authURL string) {
	if o.config.SkipBrowser {
		o.logger.Info("browser launch skipped")
		o.config.URLNotifier(authURL)
		return
	}
	if err := o.config.Launcher(authURL); err != nil {
		o.logger.Warn("could not open browser, waiting for manual sign-in",
			zap.Error(fmt.Errorf("%w: %v", ErrBrowserLaunch, err)))
		o.config.URLNotifier(authURL)
		return
	}
	o.logger.Info("browser opened for sign-in")
}
