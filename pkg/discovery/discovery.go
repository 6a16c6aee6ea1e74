package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jeremyhahn/go-cloudlogin/pkg/httpclient"
)

const (
	// CustomerPlaceholder is replaced by the customer id in CustomerURLTemplate.
	CustomerPlaceholder = "{customer}"

	// DefaultCustomerURLTemplate is the customer-scoped discovery configuration URL.
	DefaultCustomerURLTemplate = "https://" + CustomerPlaceholder + ".cloud.com/api/discovery/configurations"

	// DefaultOpenIDConfigurationURL is the provider's well-known OpenID configuration.
	DefaultOpenIDConfigurationURL = "https://accounts-internal.cloud.com/core/.well-known/openid-configuration"

	// DefaultApplicationIDHeader carries the platform application id on the customer request.
	DefaultApplicationIDHeader = "Citrix-ApplicationId"

	// maxDocumentSize bounds how much of a discovery response is read.
	maxDocumentSize = 1 << 20

	// maxErrorBody bounds how much of an error response is kept in an error message.
	maxErrorBody = 512
)

// Config configures a Resolver.
type Config struct {
	// CustomerURLTemplate is the customer discovery URL; it must contain
	// CustomerPlaceholder. Default: DefaultCustomerURLTemplate.
	CustomerURLTemplate string

	// OpenIDConfigurationURL is the well-known document URL.
	// Default: DefaultOpenIDConfigurationURL.
	OpenIDConfigurationURL string

	// ApplicationIDHeader names the header carrying the application id.
	// Default: DefaultApplicationIDHeader.
	ApplicationIDHeader string

	// CacheTTL enables reuse of resolved metadata across calls for the same
	// customer and application. Zero disables caching, so every call
	// performs both requests.
	CacheTTL time.Duration

	// HTTPClient performs the requests. Default: httpclient.New.
	HTTPClient httpclient.Doer

	// Logger receives debug and warning logs. Default: no-op.
	Logger *zap.Logger
}

// customerConfiguration is the subset of the customer discovery document we read.
type customerConfiguration struct {
	ClientSettings struct {
		ACRValues         string `json:"acr_values"`
		OIDCConfiguration struct {
			DiscoveryEndpoint string `json:"oidc_discovery_endpoint"`
		} `json:"oidcConfiguration"`
	} `json:"clientSettings"`
}

// openIDConfiguration is the subset of the OpenID Connect Discovery 1.0
// document we read.
type openIDConfiguration struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ResponseModesSupported        []string `json:"response_modes_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// Resolver resolves ProviderMetadata. It is safe for concurrent use.
type Resolver struct {
	config Config
	client httpclient.Doer
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*ProviderMetadata
	group singleflight.Group
}

// NewResolver creates a Resolver, applying defaults to cfg.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.CustomerURLTemplate == "" {
		cfg.CustomerURLTemplate = DefaultCustomerURLTemplate
	}
	if cfg.OpenIDConfigurationURL == "" {
		cfg.OpenIDConfigurationURL = DefaultOpenIDConfigurationURL
	}
	if cfg.ApplicationIDHeader == "" {
		cfg.ApplicationIDHeader = DefaultApplicationIDHeader
	}

	if !strings.Contains(cfg.CustomerURLTemplate, CustomerPlaceholder) {
		return nil, fmt.Errorf("%w: customer url template must contain %s", ErrInvalidConfiguration, CustomerPlaceholder)
	}
	if err := checkURL(strings.ReplaceAll(cfg.CustomerURLTemplate, CustomerPlaceholder, "customer")); err != nil {
		return nil, fmt.Errorf("%w: customer url template: %v", ErrInvalidConfiguration, err)
	}
	if err := checkURL(cfg.OpenIDConfigurationURL); err != nil {
		return nil, fmt.Errorf("%w: openid configuration url: %v", ErrInvalidConfiguration, err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		config: cfg,
		client: client,
		logger: logger.Named("discovery"),
		cache:  make(map[string]*ProviderMetadata),
	}, nil
}

// Resolve fetches the customer configuration and the provider's OpenID
// configuration and combines them into ProviderMetadata.
func (r *Resolver) Resolve(ctx context.Context, customerID, applicationID string) (*ProviderMetadata, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	customerID = strings.TrimSpace(customerID)
	applicationID = strings.TrimSpace(applicationID)
	if customerID == "" {
		return nil, &Error{Step: StepInput, Field: "customer_id", Err: fmt.Errorf("%w: customer id is required", ErrInvalidInput)}
	}
	if applicationID == "" {
		return nil, &Error{Step: StepInput, Field: "application_id", Err: fmt.Errorf("%w: application id is required", ErrInvalidInput)}
	}

	if r.config.CacheTTL <= 0 {
		return r.resolve(ctx, customerID, applicationID)
	}

	key := customerID + "\x00" + applicationID

	r.mu.RLock()
	cached := r.cache[key]
	r.mu.RUnlock()
	if cached != nil && !cached.Expired(r.config.CacheTTL) {
		r.logger.Debug("using cached provider metadata", zap.String("customer_id", customerID))
		return cached.clone(), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Step: StepCustomerConfiguration, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting on its own context.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		md, err := r.resolve(flightCtx, customerID, applicationID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = md
		r.mu.Unlock()
		return md, nil
	})
	select {
	case <-ctx.Done():
		return nil, &Error{Step: StepCustomerConfiguration, Err: fmt.Errorf("%w: %w", ErrTransport, ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ProviderMetadata).clone(), nil
	}
}

// Invalidate drops any cached metadata so the next Resolve fetches again.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*ProviderMetadata)
}

func (r *Resolver) resolve(ctx context.Context, customerID, applicationID string) (*ProviderMetadata, error) {
	customerURL, err := r.customerURL(customerID)
	if err != nil {
		return nil, &Error{Step: StepInput, Field: "customer_id", Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	}

	r.logger.Debug("fetching customer configuration",
		zap.String("customer_id", customerID),
		zap.String("url", customerURL))

	var customer customerConfiguration
	header := http.Header{}
	header.Set(r.config.ApplicationIDHeader, applicationID)
	if err := r.fetch(ctx, StepCustomerConfiguration, customerURL, header, &customer); err != nil {
		return nil, err
	}

	settings := customer.ClientSettings
	if strings.TrimSpace(settings.ACRValues) == "" {
		return nil, missingField(StepCustomerConfiguration, customerURL, "clientSettings.acr_values")
	}
	if strings.TrimSpace(settings.OIDCConfiguration.DiscoveryEndpoint) == "" {
		return nil, missingField(StepCustomerConfiguration, customerURL, "clientSettings.oidcConfiguration.oidc_discovery_endpoint")
	}

	r.logger.Debug("fetching openid configuration", zap.String("url", r.config.OpenIDConfigurationURL))

	var openid openIDConfiguration
	if err := r.fetch(ctx, StepOpenIDConfiguration, r.config.OpenIDConfigurationURL, nil, &openid); err != nil {
		return nil, err
	}
	if strings.TrimSpace(openid.AuthorizationEndpoint) == "" {
		return nil, missingField(StepOpenIDConfiguration, r.config.OpenIDConfigurationURL, "authorization_endpoint")
	}
	if strings.TrimSpace(openid.TokenEndpoint) == "" {
		return nil, missingField(StepOpenIDConfiguration, r.config.OpenIDConfigurationURL, "token_endpoint")
	}

	md := &ProviderMetadata{
		CustomerID:            customerID,
		ApplicationID:         applicationID,
		ACRValues:             settings.ACRValues,
		DiscoveryEndpoint:     settings.OIDCConfiguration.DiscoveryEndpoint,
		AuthorizationEndpoint: openid.AuthorizationEndpoint,
		TokenEndpoint:         openid.TokenEndpoint,
		Issuer:                openid.Issuer,
		JWKSURI:               openid.JWKSURI,
		CodeChallengeMethods:  openid.CodeChallengeMethodsSupported,
		ResponseModes:         openid.ResponseModesSupported,
		ResolvedAt:            time.Now(),
	}

	if !md.SupportsChallengeMethod("S256") {
		r.logger.Warn("provider does not advertise S256 code challenge method",
			zap.Strings("code_challenge_methods_supported", md.CodeChallengeMethods))
	}

	r.logger.Info("resolved provider metadata",
		zap.String("customer_id", customerID),
		zap.String("authorization_endpoint", md.AuthorizationEndpoint),
		zap.String("token_endpoint", md.TokenEndpoint))

	return md, nil
}

// fetch performs a single GET and decodes a 200 JSON response into into.
func (r *Resolver) fetch(ctx context.Context, step Step, rawURL string, header http.Header, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Step: step, URL: rawURL, Err: fmt.Errorf("%w: failed to create request: %v", ErrTransport, err)}
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return &Error{Step: step, URL: rawURL, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return &Error{Step: step, URL: rawURL, Err: fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Step:       step,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, truncate(body, maxErrorBody)),
		}
	}

	if err := json.Unmarshal(body, into); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Error{
				Step:  step,
				URL:   rawURL,
				Field: typeErr.Field,
				Err:   fmt.Errorf("%w: expected %s, got %s", ErrMissingField, typeErr.Type, typeErr.Value),
			}
		}
		return &Error{Step: step, URL: rawURL, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}
	return nil
}

func (r *Resolver) customerURL(customerID string) (string, error) {
	u := strings.ReplaceAll(r.config.CustomerURLTemplate, CustomerPlaceholder, url.PathEscape(customerID))
	if err := checkURL(u); err != nil {
		return "", err
	}
	return u, nil
}

func missingField(step Step, rawURL, field string) error {
	return &Error{Step: step, URL: rawURL, Field: field, Err: fmt.Errorf("%w: %s", ErrMissingField, field)}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n]) + "..."
}
