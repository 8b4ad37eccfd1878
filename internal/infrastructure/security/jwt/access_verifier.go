package jwt

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dpopcore/authcore/internal/infrastructure/security/keys"
)

// VerifierConfig holds the configuration needed to verify access tokens.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// VerifiedAccess is the application-facing result of a successful
// AccessVerifier.Verify call.
type VerifiedAccess struct {
	UserID  uuid.UUID
	JTI     string
	Scope   string
	Roles   []string
	CnfJkt  string
	HasJkt  bool
}

// AccessVerifier decodes and strictly validates EdDSA access tokens:
// signature, issuer, audience, expiry/not-before within leeway, required
// non-empty claims, and subject UUID shape.
type AccessVerifier struct {
	verifying keys.VerifyingKey
	parser    *jwt.Parser
	cfg       VerifierConfig
}

// NewAccessVerifier constructs an AccessVerifier bound to a single Ed25519
// public key, issuer, and audience.
func NewAccessVerifier(verifying keys.VerifyingKey, cfg VerifierConfig) (*AccessVerifier, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt issuer cannot be empty")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("jwt audience cannot be empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	)

	return &AccessVerifier{verifying: verifying, parser: parser, cfg: cfg}, nil
}

// Verify parses token, checks its Ed25519 signature, iss/aud/exp/nbf, then
// enforces non-empty-claim and subject-UUID-shape invariants beyond what
// the library's built-in validation performs. Any failure is reported as
// an error wrapping ErrVerification; the caller must treat every such
// error identically (collapse to 401).
func (v *AccessVerifier) Verify(token string) (VerifiedAccess, error) {
	var claims AccessTokenClaims

	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.verifying.Public(), nil
	})
	if err != nil {
		return VerifiedAccess{}, fmt.Errorf("%w: %s", ErrVerification, err.Error())
	}

	if strings.TrimSpace(claims.Issuer) == "" {
		return VerifiedAccess{}, fmt.Errorf("%w: empty iss", ErrVerification)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return VerifiedAccess{}, fmt.Errorf("%w: empty sub", ErrVerification)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Unix() == 0 {
		return VerifiedAccess{}, fmt.Errorf("%w: empty exp", ErrVerification)
	}
	if !audienceNonEmpty(claims.Audience) {
		return VerifiedAccess{}, fmt.Errorf("%w: empty aud", ErrVerification)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return VerifiedAccess{}, fmt.Errorf("%w: sub is not a uuid", ErrVerification)
	}

	out := VerifiedAccess{
		UserID: userID,
		JTI:    claims.ID,
		Scope:  claims.Scope,
		Roles:  claims.Roles,
	}
	if claims.Cnf != nil && claims.Cnf.Jkt != "" {
		out.CnfJkt = claims.Cnf.Jkt
		out.HasJkt = true
	}

	return out, nil
}

// audienceNonEmpty reports whether aud is present and has at least one
// non-empty member.
func audienceNonEmpty(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}
