package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appauth "github.com/dpopcore/authcore/internal/application/auth"
	"github.com/dpopcore/authcore/internal/interfaces/http/dto"
)

const grantRefreshToken = "refresh_token"

// tokenIssuer is the narrow capability TokenHandler needs from
// appauth.TokenIssuer, named here so handler tests can stub it.
type tokenIssuer interface {
	Issue(ctx context.Context, subject uuid.UUID, boundKeyThumbprint string) (*appauth.IssueResult, error)
}

// tokenRefresher is the narrow capability TokenHandler needs from
// appauth.RefreshManager.
type tokenRefresher interface {
	Refresh(ctx context.Context, presentedToken string) (*appauth.RefreshResult, error)
}

// TokenHandler serves the single token endpoint, dispatching between the
// issuance and refresh use cases by grant_type.
type TokenHandler struct {
	issuer  tokenIssuer
	refresh tokenRefresher
	logger  zerolog.Logger
}

// NewTokenHandler creates a new TokenHandler with the given dependencies.
func NewTokenHandler(issuer tokenIssuer, refresh tokenRefresher, logger zerolog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, refresh: refresh, logger: logger}
}

// Routes registers the token endpoint with the chi router.
//
//nolint:ireturn // chi's standard sub-router pattern
func (h *TokenHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.IssueOrRefresh)
	return r
}

// IssueOrRefresh handles POST /api/v1/token. A grant_type of
// "refresh_token" exchanges refresh_token for a fresh access token;
// absent or any other grant_type mints a new session/token pair for sub,
// bound to jkt when supplied.
func (h *TokenHandler) IssueOrRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.TokenRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.logger.Debug().Err(err).Msg("invalid token request")
		writeTokenError(w, r, http.StatusBadRequest, "invalid_request", "Malformed request body")
		return
	}

	if req.GrantType == grantRefreshToken {
		h.refreshToken(w, r, ctx, req)
		return
	}
	h.issueToken(w, r, ctx, req)
}

func (h *TokenHandler) issueToken(w http.ResponseWriter, r *http.Request, ctx context.Context, req dto.TokenRequest) {
	if req.Sub == "" {
		writeTokenError(w, r, http.StatusBadRequest, "invalid_request", "sub is required")
		return
	}
	subject, err := uuid.Parse(req.Sub)
	if err != nil {
		writeTokenError(w, r, http.StatusBadRequest, "invalid_request", "sub must be a valid UUID")
		return
	}

	result, err := h.issuer.Issue(ctx, subject, req.Jkt)
	if err != nil {
		h.logger.Error().Err(err).Str("subject", req.Sub).Msg("token issuance failed")
		writeTokenError(w, r, http.StatusInternalServerError, "server_error", "Unable to issue token")
		return
	}

	if err := EncodeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		SessionID:    result.SessionID.String(),
	}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode token response")
	}
}

func (h *TokenHandler) refreshToken(w http.ResponseWriter, r *http.Request, ctx context.Context, req dto.TokenRequest) {
	if req.RefreshToken == "" {
		writeTokenError(w, r, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	result, err := h.refresh.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, appauth.ErrUnauthorized) {
			writeTokenError(w, r, http.StatusUnauthorized, "invalid_grant", "Refresh token is invalid, expired, or revoked")
			return
		}
		h.logger.Error().Err(err).Msg("token refresh failed")
		writeTokenError(w, r, http.StatusInternalServerError, "server_error", "Unable to refresh token")
		return
	}

	if err := EncodeJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		SessionID:    result.SessionID,
	}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode token response")
	}
}

// writeTokenError writes the token endpoint's opaque error body, per its
// own wire contract rather than the RFC 7807 shape the rest of the HTTP
// surface uses: {"error":{"code","message"}}.
func writeTokenError(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	EncodeJSON(w, status, dto.ErrorResponse{ //nolint:errcheck // response already compromised if this fails
		Error: dto.ErrorDetail{Code: code, Message: message},
	})
}
