package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/httpclient"
)

const (
	maxTokenResponseSize = 1 << 20
	maxErrorBody         = 512
)

// ExchangeRequest carries the values sent to the token endpoint.
type ExchangeRequest struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Code         string
	CodeVerifier string
}

// TokenClientConfig configures a TokenClient.
type TokenClientConfig struct {
	// AuthMode selects client authentication. Required.
	AuthMode ClientAuthMode

	// HTTPClient performs the token request. Default: httpclient.New.
	HTTPClient httpclient.Doer

	// Logger receives token client logs. Default: no-op.
	Logger *zap.Logger

	// Now is the clock used to compute token expiry. Default: time.Now.
	Now func() time.Time
}

// TokenClient redeems authorization codes at the provider's token endpoint.
// Each Exchange is a single attempt.
type TokenClient struct {
	authMode   ClientAuthMode
	httpClient httpclient.Doer
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenClient creates a TokenClient.
func NewTokenClient(cfg TokenClientConfig) (*TokenClient, error) {
	mode, err := ParseClientAuthMode(string(cfg.AuthMode))
	if err != nil {
		return nil, err
	}

	c := &TokenClient{
		authMode:   mode,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.New(httpclient.Options{})
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("token")
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// AuthMode returns the client authentication mode.
func (c *TokenClient) AuthMode() ClientAuthMode {
	return c.authMode
}

// Exchange redeems req.Code for tokens at md.TokenEndpoint.
func (c *TokenClient) Exchange(ctx context.Context, md *discovery.ProviderMetadata, req ExchangeRequest) (*TokenSet, error) {
	if md == nil || strings.TrimSpace(md.TokenEndpoint) == "" {
		return nil, fmt.Errorf("%w: token endpoint is required", ErrInvalidConfiguration)
	}
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	// Build token request
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", req.Code)
	data.Set("redirect_uri", req.RedirectURI)
	data.Set("client_id", req.ClientID)
	data.Set("code_verifier", req.CodeVerifier)

	if c.authMode == ClientAuthSecretPost {
		data.Set("client_secret", req.ClientSecret)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, md.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	if c.authMode == ClientAuthSecretBasic {
		httpReq.SetBasicAuth(url.QueryEscape(req.ClientID), url.QueryEscape(req.ClientSecret))
	}

	c.logger.Debug("exchanging authorization code",
		zap.String("token_endpoint", md.TokenEndpoint),
		zap.String("client_auth", string(c.authMode)))

	return c.exchangeToken(httpReq)
}

func (c *TokenClient) validateRequest(req ExchangeRequest) error {
	switch {
	case strings.TrimSpace(req.Code) == "":
		return fmt.Errorf("%w: authorization code is required", ErrInvalidConfiguration)
	case strings.TrimSpace(req.CodeVerifier) == "":
		return fmt.Errorf("%w: code verifier is required", ErrInvalidConfiguration)
	case strings.TrimSpace(req.ClientID) == "":
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	case strings.TrimSpace(req.RedirectURI) == "":
		return fmt.Errorf("%w: redirect_uri is required", ErrInvalidConfiguration)
	}
	if c.authMode.RequiresSecret() && req.ClientSecret == "" {
		return fmt.Errorf("%w: client_secret is required for %s", ErrInvalidConfiguration, c.authMode)
	}
	if c.authMode == ClientAuthNone && req.ClientSecret != "" {
		c.logger.Debug("client secret ignored for public client")
	}
	return nil
}

// exchangeToken sends a prepared token request and decodes the response.
func (c *TokenClient) exchangeToken(req *http.Request) (*TokenSet, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var tokenResp tokenResponse
	decodeErr := json.Unmarshal(body, &tokenResp)

	if resp.StatusCode != http.StatusOK {
		exErr := &TokenExchangeError{StatusCode: resp.StatusCode, Body: truncate(body, maxErrorBody)}
		if decodeErr == nil {
			exErr.ErrorCode = tokenResp.Error
			exErr.Description = tokenResp.ErrorDescription
		}
		c.logger.Warn("token endpoint rejected the request",
			zap.Int("status", resp.StatusCode),
			zap.String("error", exErr.ErrorCode),
			zap.String("error_description", exErr.Description))
		return nil, exErr
	}

	if decodeErr != nil {
		return nil, &TokenExchangeError{
			StatusCode: resp.StatusCode,
			Body:       truncate(body, maxErrorBody),
			Err:        fmt.Errorf("failed to parse response: %w", decodeErr),
		}
	}
	if tokenResp.AccessToken == "" {
		return nil, &TokenExchangeError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   tokenResp.Error,
			Description: tokenResp.ErrorDescription,
			Err:         errors.New("no access token in response"),
		}
	}

	expiresIn, err := tokenResp.expiresInSeconds()
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: err}
	}

	token := &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		Scope:        tokenResp.Scope,
	}

	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}

	if expiresIn > 0 {
		token.Expiry = c.now().Add(time.Duration(expiresIn) * time.Second)
	}

	c.logger.Info("token exchange succeeded", zap.Object("tokens", token))

	return token, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
