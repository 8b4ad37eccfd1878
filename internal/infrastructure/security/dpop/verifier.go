package dpop

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates DPoP proofs against a fixed Policy.
type Verifier struct {
	policy Policy
}

// NewVerifier constructs a Verifier for policy.
func NewVerifier(policy Policy) *Verifier {
	return &Verifier{policy: policy}
}

// VerifyProof validates the DPoP proof on r against p.policy. expectedJkt,
// when non-empty, binds the proof's embedded key to a previously issued
// cnf.jkt (sender constraint). accessToken, when non-empty, is hashed and
// compared against the proof's ath claim if the policy requires it.
//
// Replay detection (storing jti) is the caller's responsibility; this
// function only validates shape and binding.
func (v *Verifier) VerifyProof(r *http.Request, accessToken, expectedJkt string) (*VerifiedDpop, error) {
	return v.verifyProof(r, accessToken, expectedJkt, v.policy.Required)
}

// VerifyProofForced runs the same checks as VerifyProof but treats the
// proof as mandatory regardless of Policy.Required. A resource server
// uses this when the access token itself carries cnf.jkt: a
// sender-constrained token must never be accepted as a bearer token.
func (v *Verifier) VerifyProofForced(r *http.Request, accessToken, expectedJkt string) (*VerifiedDpop, error) {
	return v.verifyProof(r, accessToken, expectedJkt, true)
}

func (v *Verifier) verifyProof(r *http.Request, accessToken, expectedJkt string, required bool) (*VerifiedDpop, error) {
	if !required {
		return nil, nil
	}

	headers := r.Header.Values("DPoP")
	if len(headers) == 0 || headers[0] == "" {
		return nil, ErrMissingProof
	}
	if len(headers) != 1 {
		return nil, ErrMultipleProofs
	}
	proof := headers[0]

	var jwk embeddedJWK

	// DPoP proofs are freshness-checked via iat + MaxAge below, not exp:
	// disable the library's own exp/nbf/iat claims validation so a proof
	// that happens to carry a stale exp isn't wrongly rejected.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(proof, claims, func(tok *jwt.Token) (interface{}, error) {
		typ, _ := tok.Header["typ"].(string)
		if !strings.EqualFold(typ, "dpop+jwt") {
			return nil, ErrInvalidTyp
		}

		rawJWK, ok := tok.Header["jwk"]
		if !ok {
			return nil, ErrMissingJWK
		}
		var parseErr error
		jwk, parseErr = parseEmbeddedJWK(rawJWK)
		if parseErr != nil {
			return nil, parseErr
		}

		if expectedJkt != "" {
			actual, thumbErr := jwk.thumbprint()
			if thumbErr != nil {
				return nil, thumbErr
			}
			if actual != expectedJkt {
				return nil, ErrJktMismatch
			}
		}

		return jwk.publicKey()
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	htm, _ := claims["htm"].(string)
	htu, _ := claims["htu"].(string)
	jti, _ := claims["jti"].(string)
	nonce, _ := claims["nonce"].(string)

	if htm == "" {
		return nil, fmt.Errorf("%w: htm", ErrMissingClaim)
	}
	if htu == "" {
		return nil, fmt.Errorf("%w: htu", ErrMissingClaim)
	}
	if jti == "" {
		return nil, fmt.Errorf("%w: jti", ErrMissingClaim)
	}
	iat, ok := numericClaim(claims["iat"])
	if !ok {
		return nil, fmt.Errorf("%w: iat", ErrMissingClaim)
	}

	if !strings.EqualFold(htm, r.Method) {
		return nil, ErrMethodMismatch
	}

	expectedHTU := BuildExpectedHTU(r, v.policy.PublicBaseURL)
	if NormalizeHTU(htu) != NormalizeHTU(expectedHTU) {
		return nil, ErrURIMismatch
	}

	now := time.Now().Unix()
	leeway := int64(v.policy.IatLeeway / time.Second)
	maxAge := int64(v.policy.MaxAge / time.Second)

	if iat > now+leeway {
		return nil, ErrInvalidIat
	}
	if now-iat > maxAge+leeway {
		return nil, ErrInvalidIat
	}

	if v.policy.RequireAth {
		if accessToken == "" {
			return nil, fmt.Errorf("%w: ath", ErrMissingClaim)
		}
		ath, _ := claims["ath"].(string)
		if ath == "" {
			return nil, fmt.Errorf("%w: ath", ErrMissingClaim)
		}
		if ath != ComputeAth(accessToken) {
			return nil, ErrAthMismatch
		}
	}

	if v.policy.RequireNonce && nonce == "" {
		return nil, ErrNonceRequired
	}

	return &VerifiedDpop{
		JTI:   jti,
		IAT:   iat,
		HTM:   htm,
		HTU:   htu,
		Nonce: nonce,
	}, nil
}

// numericClaim coerces a MapClaims numeric value (float64 after JSON
// decode, or json.Number) into an int64.
func numericClaim(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// classifyParseError maps a jwt parse failure to the sentinel a caller
// further up would want to match against. Errors we raised ourselves from
// the keyfunc pass through unwrapped; everything else is a generic
// invalid-jwt signature/shape failure.
func classifyParseError(err error) error {
	switch {
	case errorIsOneOf(err, ErrInvalidTyp, ErrMissingJWK, ErrUnsupportedJWK, ErrJktMismatch, ErrInvalidJWT):
		return err
	default:
		return fmt.Errorf("%w: %s", ErrInvalidJWT, err.Error())
	}
}

func errorIsOneOf(err error, candidates ...error) bool {
	for _, c := range candidates {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}
