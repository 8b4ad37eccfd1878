// Package dpop implements RFC 9449 DPoP proof validation: decoding the
// proof JWS, checking its embedded JWK against the expected thumbprint,
// and validating htm/htu/iat/ath/nonce claims. Replay detection itself
// lives in the sibling replay package; this package only validates a
// proof's shape and binding, leaving jti storage to the caller.
package dpop

import "time"

// Policy holds the knobs a deployment can tune for proof validation.
type Policy struct {
	// Required, when false, makes VerifyProof a no-op that returns
	// (nil, nil) — used by resource servers that accept bearer-only
	// access tokens.
	Required bool

	// IatLeeway is the allowed clock skew when checking iat against now.
	IatLeeway time.Duration

	// MaxAge is the maximum acceptable age of a proof (now - iat).
	MaxAge time.Duration

	// RequireAth, when true, requires the proof's ath claim and checks it
	// against the presented access token.
	RequireAth bool

	// RequireNonce, when true, requires a non-empty nonce claim. No
	// server-issued nonce challenge is implemented yet; this flag exists
	// so the policy shape is ready for it.
	RequireNonce bool

	// PublicBaseURL, when set, is used to build the expected htu instead
	// of trusting X-Forwarded-* headers.
	PublicBaseURL string
}
