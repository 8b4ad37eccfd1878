package middleware

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "requestID"

	// UserIDKey is the context key for authenticated user ID.
	UserIDKey contextKey = "userID"
)

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// SetRequestID adds a request ID to the context.
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetUserID retrieves the user ID from the context.
// Returns zero UUID and false if not found or invalid.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	if userID, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return userID, true
	}
	return uuid.Nil, false
}

// GetUserIDString retrieves the user ID as a string from the context.
// Returns empty string and false if not found.
func GetUserIDString(ctx context.Context) (string, bool) {
	if userID, ok := GetUserID(ctx); ok {
		return userID.String(), true
	}
	return "", false
}

// SetUserContext sets the authenticated user ID on the context.
// This is a convenience function used by the authentication middleware.
func SetUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// MustGetUserID retrieves the user ID from context or panics.
// Use only in protected routes where authentication middleware guarantees user context exists.
func MustGetUserID(ctx context.Context) uuid.UUID {
	userID, ok := GetUserID(ctx)
	if !ok {
		panic("user_id not found in context - did you forget RequireAccessAndDpop middleware?")
	}
	return userID
}

// MustGetUserIDString retrieves the user ID as string from context or panics.
// Use only in protected routes where authentication middleware guarantees user context exists.
func MustGetUserIDString(ctx context.Context) string {
	return MustGetUserID(ctx).String()
}
