package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dpopcore/authcore/internal/infrastructure/security/dpop"
	"github.com/dpopcore/authcore/internal/infrastructure/security/jwt"
	"github.com/dpopcore/authcore/internal/infrastructure/security/replay"
)

// AccessVerifierInterface validates a bearer access token and returns the
// claims the resource server needs for authorization and sender
// constraint checks.
type AccessVerifierInterface interface {
	Verify(token string) (jwt.VerifiedAccess, error)
}

// DpopVerifierInterface validates a DPoP proof against the inbound
// request and an optional expected key thumbprint.
type DpopVerifierInterface interface {
	VerifyProof(r *http.Request, accessToken, expectedJkt string) (*dpop.VerifiedDpop, error)
	VerifyProofForced(r *http.Request, accessToken, expectedJkt string) (*dpop.VerifiedDpop, error)
}

// DpopAuthConfig holds the dependencies for RequireAccessAndDpop.
type DpopAuthConfig struct {
	AccessVerifier AccessVerifierInterface
	DpopVerifier   DpopVerifierInterface
	ReplayStore    replay.Store
	ReplayTTL      time.Duration
	Logger         zerolog.Logger
}

// RequireAccessAndDpop authenticates a request with a bearer access token
// and a DPoP proof. A proof is required when the token carries cnf.jkt (and
// must then match it) or when the DPoP verifier's policy has Required set.
//
// Ordering matters: the access token is verified first (so an attacker
// cannot use a garbage token to probe DPoP-specific error messages),
// then the DPoP proof is checked against the request's method/URI/age,
// then finally the replay store is consulted — so a proof that would
// fail on its own merits never consumes a jti slot.
func RequireAccessAndDpop(cfg DpopAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token, ok := bearerToken(r)
			if !ok {
				WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header")
				return
			}

			verified, err := cfg.AccessVerifier.Verify(token)
			if err != nil {
				cfg.Logger.Warn().
					Err(err).
					Str("request_id", requestID).
					Str("path", r.URL.Path).
					Msg("access token verification failed")

				WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired access token")
				return
			}

			var proof *dpop.VerifiedDpop
			if verified.HasJkt {
				proof, err = cfg.DpopVerifier.VerifyProofForced(r, token, verified.CnfJkt)
			} else {
				proof, err = cfg.DpopVerifier.VerifyProof(r, token, "")
			}
			if err != nil {
				cfg.Logger.Warn().
					Err(err).
					Str("request_id", requestID).
					Str("path", r.URL.Path).
					Msg("dpop proof verification failed")

				WriteError(w, r, http.StatusUnauthorized, "Unauthorized", dpopErrorMessage(err))
				return
			}

			if proof != nil {
				replayKey := fmt.Sprintf("dpop:%s:%s", verified.UserID.String(), proof.JTI)
				stored, err := cfg.ReplayStore.CheckAndStore(r.Context(), replayKey, cfg.ReplayTTL)
				if err != nil {
					cfg.Logger.Error().
						Err(err).
						Str("request_id", requestID).
						Msg("replay store unavailable")

					WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid DPoP proof")
					return
				}
				if !stored {
					cfg.Logger.Warn().
						Str("request_id", requestID).
						Str("jti", proof.JTI).
						Msg("dpop proof replay detected")

					WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "DPoP proof has already been used")
					return
				}
			}

			ctx := SetUserContext(r.Context(), verified.UserID)
			ctx = setAccessClaims(ctx, verified)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func dpopErrorMessage(err error) string {
	switch {
	case errors.Is(err, dpop.ErrMissingProof):
		return "DPoP proof required for this token"
	case errors.Is(err, dpop.ErrJktMismatch):
		return "DPoP proof key does not match token binding"
	default:
		return "Invalid DPoP proof"
	}
}

type accessClaimsKey struct{}

func setAccessClaims(ctx context.Context, claims jwt.VerifiedAccess) context.Context {
	return context.WithValue(ctx, accessClaimsKey{}, claims)
}

// GetAccessClaims retrieves the verified access-token claims set by
// RequireAccessAndDpop.
func GetAccessClaims(ctx context.Context) (jwt.VerifiedAccess, bool) {
	claims, ok := ctx.Value(accessClaimsKey{}).(jwt.VerifiedAccess)
	return claims, ok
}
