// Package oauth implements the interactive OAuth 2.0 authorization code
// flow with PKCE (RFC 7636) for a native client using a loopback redirect
// (RFC 8252), plus the token exchange and optional OpenID Connect ID token
// verification that follow it.
//
// # Authorization
//
// An Orchestrator starts a callback listener on the redirect URI's loopback
// address, opens the user's browser at the provider's authorization
// endpoint and waits for the redirect:
//
//	orch, err := oauth.NewOrchestrator(oauth.OrchestratorConfig{
//	    CallbackTimeout: 5 * time.Minute,
//	    Logger:          logger,
//	})
//	if err != nil {
//	    return err
//	}
//
//	code, err := orch.Run(ctx, metadata, clientID, "http://localhost:8400/callback")
//	if err != nil {
//	    return err
//	}
//
// Each Run generates fresh state, nonce and PKCE values. The returned state
// is compared in constant time before the code is accepted. If the browser
// cannot be opened, the URL is handed to the URLNotifier and Run keeps
// waiting.
//
// # Token Exchange
//
// A TokenClient redeems the code. Client authentication is explicit:
//
//	tc, err := oauth.NewTokenClient(oauth.TokenClientConfig{
//	    AuthMode: oauth.ClientAuthNone,
//	})
//	if err != nil {
//	    return err
//	}
//
//	tokens, err := tc.Exchange(ctx, metadata, oauth.ExchangeRequest{
//	    ClientID:     clientID,
//	    RedirectURI:  code.RedirectURI,
//	    Code:         code.Code,
//	    CodeVerifier: code.CodeVerifier,
//	})
//
// A rejected request is a *TokenExchangeError carrying the HTTP status and
// the provider's error payload. Nothing is retried.
//
// # ID Token Verification
//
// When the provider publishes a JWKS URI and issuer, an IDTokenVerifier
// checks the ID token signature, issuer, audience, expiry and nonce:
//
//	v, err := oauth.NewIDTokenVerifier(ctx, metadata, oauth.IDTokenVerifierConfig{
//	    ClientID: clientID,
//	})
//	if err != nil {
//	    return err
//	}
//	claims, err := v.Verify(ctx, tokens.IDToken, code.Nonce)
package oauth
