package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dpopcore/authcore/internal/infrastructure/security/keys"
)

// IssuerConfig holds the configuration needed to mint access tokens.
type IssuerConfig struct {
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

// AccessIssuer signs EdDSA access tokens for a given subject, optionally
// binding them to a client DPoP key via cnf.jkt.
type AccessIssuer struct {
	signing keys.SigningKey
	cfg     IssuerConfig
}

// NewAccessIssuer constructs an AccessIssuer. AccessTTL must be positive.
func NewAccessIssuer(signing keys.SigningKey, cfg IssuerConfig) (*AccessIssuer, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt issuer cannot be empty")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("jwt audience cannot be empty")
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &AccessIssuer{signing: signing, cfg: cfg}, nil
}

// Issue mints a signed access token for subject. boundKeyThumbprint, when
// non-empty, is embedded as cnf.jkt, sender-constraining the token.
func (a *AccessIssuer) Issue(subject uuid.UUID, boundKeyThumbprint string, now time.Time) (token string, jti string, err error) {
	jti = uuid.New().String()

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Audience:  jwt.ClaimStrings{a.cfg.Audience},
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	if boundKeyThumbprint != "" {
		claims.Cnf = &CnfClaim{Jkt: boundKeyThumbprint}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["typ"] = "JWT"

	signed, err := tok.SignedString(a.signing.Private())
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, jti, nil
}

// AccessTTLSeconds returns the configured access-token lifetime in seconds, as
// surfaced by the token endpoint's expires_in field.
func (a *AccessIssuer) AccessTTLSeconds() int64 {
	return int64(a.cfg.AccessTTL / time.Second)
}
