// Package discovery resolves identity provider metadata for a customer.
//
// Resolution takes two chained requests:
//
//  1. The customer-scoped discovery configuration, requested with the
//     platform application identifier in a request header. It yields the
//     acr_values to request and the customer's OIDC discovery endpoint.
//  2. The provider's well-known OpenID configuration document. It yields
//     the authorization and token endpoints (and, when published, the
//     issuer and JWKS URI).
//
// Both documents are fixed per provider; the second is not derived from the
// first.
//
//	resolver, err := discovery.NewResolver(discovery.Config{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	md, err := resolver.Resolve(ctx, customerID, applicationID)
//
// Every failure is a *Error naming the step and, where applicable, the
// field that could not be read. No request is retried.
package discovery
