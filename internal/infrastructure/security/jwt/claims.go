// Package jwt mints and verifies EdDSA access tokens (RFC 9449 calls these
// "sender-constrained" once bound to cnf.jkt). Signing lives in AccessIssuer,
// verification in AccessVerifier; both share the AccessTokenClaims wire
// shape below.
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// CnfClaim carries the DPoP confirmation method: a JWK thumbprint binding
// the token to the client's proof-of-possession key.
type CnfClaim struct {
	Jkt string `json:"jkt"`
}

// AccessTokenClaims is the wire shape of an access token's JWS payload.
// Aud is jwt.ClaimStrings so it round-trips whether the issuer emitted a
// single string or an array.
type AccessTokenClaims struct {
	Scope string    `json:"scope,omitempty"`
	Roles []string  `json:"roles,omitempty"`
	Cnf   *CnfClaim `json:"cnf,omitempty"`
	jwt.RegisteredClaims
}
