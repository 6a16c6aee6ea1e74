// Package pkce implements Proof Key for Code Exchange (RFC 7636) for the
// authorization code flow.
//
// A Pair holds a high-entropy code verifier and the code challenge derived
// from it. The verifier is sent only to the token endpoint; the challenge is
// sent with the authorization request.
//
//	pair, err := pkce.Generate()
//	if err != nil {
//	    return err
//	}
//	// pair.Challenge and pair.Method go on the authorization URL,
//	// pair.Verifier goes on the token request.
//
// # Challenge Encoding
//
// RFC 7636 §4.2 defines the S256 challenge as
// BASE64URL-ENCODE(SHA256(ASCII(code_verifier))) without padding, which is
// what Generate produces. Some deployments were built against a client that
// rendered the digest as lowercase hex instead; GenerateWithEncoding with
// EncodingHex reproduces that form for identity providers that expect it.
// The method parameter stays "S256" in both cases.
package pkce
