package dpop

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// embeddedJWK is the subset of an OKP/Ed25519 JWK we accept embedded in a
// DPoP proof's JOSE header.
type embeddedJWK struct {
	Kty string
	Crv string
	X   string
}

// parseEmbeddedJWK pulls crv/kty/x out of the raw "jwk" header value,
// which arrives as map[string]interface{} after JSON decoding.
func parseEmbeddedJWK(raw interface{}) (embeddedJWK, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return embeddedJWK{}, fmt.Errorf("%w: jwk header is not an object", ErrInvalidJWT)
	}

	kty, _ := m["kty"].(string)
	crv, _ := m["crv"].(string)
	x, _ := m["x"].(string)

	if kty == "" || x == "" {
		return embeddedJWK{}, fmt.Errorf("%w: jwk missing kty/x", ErrInvalidJWT)
	}

	return embeddedJWK{Kty: kty, Crv: crv, X: x}, nil
}

// publicKey reconstructs the Ed25519 public key the JWK encodes.
func (j embeddedJWK) publicKey() (ed25519.PublicKey, error) {
	if j.Kty != "OKP" || j.Crv != "Ed25519" {
		return nil, ErrUnsupportedJWK
	}

	raw, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid jwk x value", ErrInvalidJWT)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: invalid ed25519 key length", ErrInvalidJWT)
	}

	return ed25519.PublicKey(raw), nil
}

// thumbprint computes the RFC 7638 JWK thumbprint: SHA-256 over the
// canonical JSON object with lexicographically ordered members
// (crv, kty, x), base64url-no-pad encoded.
func (j embeddedJWK) thumbprint() (string, error) {
	if j.Kty != "OKP" || j.Crv != "Ed25519" {
		return "", ErrUnsupportedJWK
	}

	canonical := fmt.Sprintf(`{"crv":"Ed25519","kty":"OKP","x":"%s"}`, j.X)
	digest := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// ThumbprintFromEd25519PublicKey computes the RFC 7638 thumbprint for a raw
// Ed25519 public key, used by clients or tests that hold only key bytes.
func ThumbprintFromEd25519PublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid ed25519 public key length")
	}
	j := embeddedJWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
	return j.thumbprint()
}
