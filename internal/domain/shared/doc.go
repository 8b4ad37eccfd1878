// Package shared provides the small set of domain primitives used across
// the auth domain: UTC timestamp helpers and common error sentinels.
//
// # Design Principles
//
//   - Minimal dependencies: standard library only
//   - UTC timestamps: all time operations use UTC
//   - No business logic: only generic primitives and helpers
//
// # Components
//
// Timestamps:
//   - Now() returns current UTC time
//   - ParseISO8601() parses RFC3339/RFC3339Nano timestamps
//   - FormatISO8601() formats to RFC3339 in UTC
//
// Common Errors:
//   - ErrNotFound, ErrAlreadyExists, ErrInvalidInput, ErrUnauthorized, ErrForbidden
//
// Usage:
//
//	createdAt := shared.Now()
//	if err != nil {
//	    return fmt.Errorf("finding session %s: %w", id, shared.ErrNotFound)
//	}
package shared
