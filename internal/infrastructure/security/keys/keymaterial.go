// Package keys loads and holds the Ed25519 key material used to sign and
// verify access tokens. DPoP proofs are verified against the JWK embedded
// in each proof, not against these keys. Raw key bytes must never be
// printable via any debug/formatting path, so both handles below
// implement String/GoString with a fixed redacted placeholder.
package keys

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

const redacted = "[REDACTED ed25519 key material]"

// SigningKey wraps an Ed25519 private key used by the authorization
// server to mint access tokens.
type SigningKey struct {
	private ed25519.PrivateKey
}

// String implements fmt.Stringer without leaking key bytes.
func (k SigningKey) String() string { return redacted }

// GoString implements fmt.GoStringer without leaking key bytes.
func (k SigningKey) GoString() string { return redacted }

// Private returns the underlying Ed25519 private key for signing.
func (k SigningKey) Private() ed25519.PrivateKey { return k.private }

// VerifyingKey wraps an Ed25519 public key used by the resource server to
// verify access-token signatures.
type VerifyingKey struct {
	public ed25519.PublicKey
}

// String implements fmt.Stringer without leaking key bytes.
func (k VerifyingKey) String() string { return redacted }

// GoString implements fmt.GoStringer without leaking key bytes.
func (k VerifyingKey) GoString() string { return redacted }

// Public returns the underlying Ed25519 public key for verification.
func (k VerifyingKey) Public() ed25519.PublicKey { return k.public }

// LoadSigningKeyPEM parses an Ed25519 private key from PKCS#8 PEM bytes.
func LoadSigningKeyPEM(pemBytes []byte) (SigningKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return SigningKey{}, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return SigningKey{}, fmt.Errorf("failed to parse PKCS8 private key: %w", err)
	}

	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return SigningKey{}, fmt.Errorf("key is not an Ed25519 private key")
	}

	return SigningKey{private: edKey}, nil
}

// LoadVerifyingKeyPEM parses an Ed25519 public key from PKIX PEM bytes.
func LoadVerifyingKeyPEM(pemBytes []byte) (VerifyingKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return VerifyingKey{}, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return VerifyingKey{}, fmt.Errorf("failed to parse PKIX public key: %w", err)
	}

	edKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return VerifyingKey{}, fmt.Errorf("key is not an Ed25519 public key")
	}

	return VerifyingKey{public: edKey}, nil
}

// LoadSigningKeyFile reads and parses an Ed25519 private key PEM file.
func LoadSigningKeyFile(path string) (SigningKey, error) {
	//nolint:gosec // G304: path comes from trusted configuration, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return SigningKey{}, fmt.Errorf("failed to read private key file: %w", err)
	}
	return LoadSigningKeyPEM(data)
}

// LoadVerifyingKeyFile reads and parses an Ed25519 public key PEM file.
func LoadVerifyingKeyFile(path string) (VerifyingKey, error) {
	//nolint:gosec // G304: path comes from trusted configuration, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return VerifyingKey{}, fmt.Errorf("failed to read public key file: %w", err)
	}
	return LoadVerifyingKeyPEM(data)
}
