package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// MethodS256 is the only code challenge method this package produces.
	MethodS256 = "S256"

	// VerifierLength is the length of generated code verifiers, the RFC 7636 maximum.
	VerifierLength = 128

	// Alphabet is the set of characters verifiers are drawn from. It is a subset
	// of the RFC 3986 unreserved characters.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Encoding selects how the SHA-256 digest of the verifier is rendered.
type Encoding string

const (
	// EncodingBase64URL renders the digest as unpadded base64url (RFC 7636 §4.2).
	EncodingBase64URL Encoding = "base64url"

	// EncodingHex renders the digest as lowercase hexadecimal.
	EncodingHex Encoding = "hex"
)

var (
	// ErrRandom indicates the system random source failed.
	ErrRandom = errors.New("pkce: random source failed")

	// ErrUnknownEncoding indicates an unsupported challenge encoding.
	ErrUnknownEncoding = errors.New("pkce: unknown challenge encoding")

	// ErrInvalidLength indicates a negative random string length.
	ErrInvalidLength = errors.New("pkce: invalid length")
)

// rejectionLimit is the largest multiple of len(Alphabet) that fits in a byte.
// Bytes at or above it are discarded so every character is equally likely.
const rejectionLimit = 256 - (256 % len(Alphabet))

// Pair is a PKCE code verifier and its derived challenge.
type Pair struct {
	// Verifier is the secret sent to the token endpoint.
	Verifier string

	// Challenge is the derived value sent with the authorization request.
	Challenge string

	// Method is the code_challenge_method, always "S256".
	Method string
}

// Generate creates a new Pair with a base64url-encoded S256 challenge.
func Generate() (Pair, error) {
	return generate(rand.Reader, EncodingBase64URL)
}

// GenerateWithEncoding creates a new Pair whose challenge uses enc.
func GenerateWithEncoding(enc Encoding) (Pair, error) {
	if _, err := ParseEncoding(string(enc)); err != nil {
		return Pair{}, err
	}
	return generate(rand.Reader, enc)
}

func generate(r io.Reader, enc Encoding) (Pair, error) {
	verifier, err := randomString(r, VerifierLength)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier, enc),
		Method:    MethodS256,
	}, nil
}

// Challenge derives the S256 code challenge for verifier.
// An empty enc means EncodingBase64URL.
func Challenge(verifier string, enc Encoding) string {
	sum := sha256.Sum256([]byte(verifier))
	if enc == EncodingHex {
		return hex.EncodeToString(sum[:])
	}
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether verifier matches challenge under enc.
func Verify(verifier, challenge string, enc Encoding) bool {
	return Challenge(verifier, enc) == challenge
}

// RandomString returns n characters drawn uniformly from Alphabet using
// crypto/rand. A zero length yields the empty string.
func RandomString(n int) (string, error) {
	return randomString(rand.Reader, n)
}

func randomString(r io.Reader, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	if n == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.Grow(n)

	buf := make([]byte, n)
	for sb.Len() < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRandom, err)
		}
		for _, b := range buf {
			if int(b) >= rejectionLimit {
				continue
			}
			sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
			if sb.Len() == n {
				break
			}
		}
	}
	return sb.String(), nil
}

// ParseEncoding converts a configuration string into an Encoding.
// The empty string selects EncodingBase64URL.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingBase64URL:
		return EncodingBase64URL, nil
	case EncodingHex:
		return EncodingHex, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}
