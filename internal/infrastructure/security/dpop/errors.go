package dpop

import "errors"

// Sentinel errors for every way a DPoP proof can fail validation. Callers
// match with errors.Is; the HTTP edge collapses all of them to 401 but a
// caller that wants diagnostics (logging, metrics) can discriminate.
var (
	ErrMissingProof   = errors.New("dpop: missing proof header")
	ErrMultipleProofs = errors.New("dpop: multiple proof headers")
	ErrInvalidJWT     = errors.New("dpop: invalid proof jwt")
	ErrMissingJWK     = errors.New("dpop: missing jwk in proof header")
	ErrInvalidTyp     = errors.New("dpop: invalid proof typ")
	ErrMissingClaim   = errors.New("dpop: missing required claim")
	ErrMethodMismatch = errors.New("dpop: htm mismatch")
	ErrURIMismatch    = errors.New("dpop: htu mismatch")
	ErrInvalidIat     = errors.New("dpop: iat out of range")
	ErrAthMismatch    = errors.New("dpop: ath mismatch")
	ErrNonceRequired  = errors.New("dpop: nonce required")
	ErrJktMismatch    = errors.New("dpop: cnf.jkt mismatch")
	ErrUnsupportedJWK = errors.New("dpop: unsupported jwk for dpop")
)
