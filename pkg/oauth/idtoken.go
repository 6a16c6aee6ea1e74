package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
)

// DefaultLeeway is the clock skew tolerated when checking ID token times.
const DefaultLeeway = 60 * time.Second

// idTokenSigningMethods are the asymmetric algorithms accepted for ID tokens.
var idTokenSigningMethods = []string{
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
	"PS256", "PS384", "PS512",
}

// IDTokenClaims are the verified claims of an ID token.
type IDTokenClaims struct {
	Issuer            string
	Subject           string
	Audience          []string
	ExpiresAt         time.Time
	IssuedAt          time.Time
	Nonce             string
	ACR               string
	AZP               string
	Email             string
	Name              string
	PreferredUsername string
}

// idTokenJWTClaims is the JWT claims set decoded from an ID token.
type idTokenJWTClaims struct {
	jwt.RegisteredClaims

	Nonce             string `json:"nonce,omitempty"`
	ACR               string `json:"acr,omitempty"`
	AZP               string `json:"azp,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// IDTokenVerifierConfig configures an IDTokenVerifier.
type IDTokenVerifierConfig struct {
	// ClientID is the expected audience. Required.
	ClientID string

	// HTTPClient fetches the JWKS. Default: http.DefaultClient.
	HTTPClient *http.Client

	// JWKSTimeout bounds each JWKS request. Zero keeps the library default.
	JWKSTimeout time.Duration

	// Leeway is the tolerated clock skew. Default: DefaultLeeway.
	Leeway time.Duration

	// Now is the clock used for time-based claims. Default: time.Now.
	Now func() time.Time

	// Logger receives verifier logs. Default: no-op.
	Logger *zap.Logger
}

// IDTokenVerifier checks ID token signatures against the provider's JWKS
// and validates issuer, audience, expiry and nonce.
type IDTokenVerifier struct {
	issuer   string
	clientID string
	leeway   time.Duration
	now      func() time.Time
	logger   *zap.Logger
	jwks     keyfunc.Keyfunc
}

// NewIDTokenVerifier creates a verifier for md's issuer and key set. The
// key set is fetched immediately and refreshed in the background until ctx
// is done.
func NewIDTokenVerifier(ctx context.Context, md *discovery.ProviderMetadata, cfg IDTokenVerifierConfig) (*IDTokenVerifier, error) {
	if md == nil || strings.TrimSpace(md.JWKSURI) == "" {
		return nil, fmt.Errorf("%w: provider metadata has no jwks_uri", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(md.Issuer) == "" {
		return nil, fmt.Errorf("%w: provider metadata has no issuer", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("idtoken")

	v := &IDTokenVerifier{
		issuer:   md.Issuer,
		clientID: cfg.ClientID,
		leeway:   cfg.Leeway,
		now:      cfg.Now,
		logger:   logger,
	}
	if v.leeway <= 0 {
		v.leeway = DefaultLeeway
	}
	if v.now == nil {
		v.now = time.Now
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{md.JWKSURI}, keyfunc.Override{
		Client:      client,
		HTTPTimeout: cfg.JWKSTimeout,
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				logger.Warn("failed to refresh jwks", zap.String("url", u), zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: jwks: %v", ErrInvalidIDToken, err)
	}
	v.jwks = jwks

	return v, nil
}

// Verify validates rawIDToken and returns its claims. An empty nonce skips
// the nonce check.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawIDToken, nonce string) (*IDTokenClaims, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrMissingIDToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var claims idTokenJWTClaims
	token, err := jwt.ParseWithClaims(rawIDToken, &claims, v.jwks.Keyfunc,
		jwt.WithValidMethods(idTokenSigningMethods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		v.logger.Warn("id token rejected", zap.Error(err))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidIDToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidIDToken
	}

	// azp must name this client when the token is issued to several audiences.
	if len(claims.Audience) > 1 && claims.AZP != "" && claims.AZP != v.clientID {
		return nil, fmt.Errorf("%w: azp does not match client_id", ErrInvalidIDToken)
	}

	if err := validateNonce(nonce, claims.Nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}

	out := &IDTokenClaims{
		Issuer:            claims.Issuer,
		Subject:           claims.Subject,
		Audience:          slices.Clone([]string(claims.Audience)),
		Nonce:             claims.Nonce,
		ACR:               claims.ACR,
		AZP:               claims.AZP,
		Email:             claims.Email,
		Name:              claims.Name,
		PreferredUsername: claims.PreferredUsername,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	v.logger.Debug("id token verified", zap.String("subject", out.Subject))

	return out, nil
}
