package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails represents an RFC 7807 Problem Details response.
// This standard format provides machine-readable error details for HTTP APIs.
//
// Example response:
//
//	{
//	  "type": "https://api.authcore.dev/problems/validation-error",
//	  "title": "Validation Failed",
//	  "status": 400,
//	  "detail": "Email format is invalid",
//	  "instance": "/api/v1/users",
//	  "traceId": "550e8400-e29b-41d3-a456-426614174000",
//	  "timestamp": "2024-11-10T15:30:00Z"
//	}
//
// Reference: https://datatracker.ietf.org/doc/html/rfc7807
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type.
	// When dereferenced, it should provide human-readable documentation.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	// It SHOULD NOT change between occurrences of the same problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	// Typically the request path that caused the error.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request correlation ID for debugging and log aggregation.
	TraceID string `json:"traceId,omitempty"`

	// Timestamp is when the error occurred (ISO 8601 format).
	Timestamp string `json:"timestamp,omitempty"`

	// Extensions holds additional problem-specific fields.
	// For validation errors: {"errors": {"email": "invalid format"}}
	// For rate limits: {"retryAfter": 42, "limit": 100}
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// WriteError writes an RFC 7807 Problem Details response.
// It automatically includes the request ID (traceId), timestamp, and instance path.
//
// Usage:
//
//	middleware.WriteError(w, r, http.StatusBadRequest, "Invalid Input", "Email is required")
func WriteError(w http.ResponseWriter, r *http.Request, status int, title string, detail string) {
	problem := ProblemDetails{
		Type:      problemTypeURL(status),
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		TraceID:   GetRequestID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	WriteProblemDetails(w, r, problem)
}

// WriteErrorWithExtensions writes an RFC 7807 Problem Details response with custom extensions.
//
// Usage:
//
//	middleware.WriteErrorWithExtensions(w, r, http.StatusTooManyRequests,
//	    "Rate Limit Exceeded",
//	    "You have made too many requests",
//	    map[string]interface{}{
//	        "limit": 100,
//	        "remaining": 0,
//	        "retryAfter": 42,
//	    })
func WriteErrorWithExtensions(
	w http.ResponseWriter, r *http.Request,
	status int, title string, detail string,
	extensions map[string]interface{},
) {
	problem := ProblemDetails{
		Type:       problemTypeURL(status),
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   r.URL.Path,
		TraceID:    GetRequestID(r.Context()),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Extensions: extensions,
	}

	WriteProblemDetails(w, r, problem)
}

// WriteProblemDetails writes a ProblemDetails struct as JSON response.
func WriteProblemDetails(w http.ResponseWriter, r *http.Request, problem ProblemDetails) {
	// Ensure traceId and timestamp are set
	if problem.TraceID == "" {
		problem.TraceID = GetRequestID(r.Context())
	}
	if problem.Timestamp == "" {
		problem.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	// JSON encoding error should not happen with our struct, but handle it gracefully
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		// Fallback: write a plain text error (we can't use JSON at this point)
		w.Header().Set("Content-Type", "text/plain")
		// Best-effort write; ignore error since response is already compromised
		_, _ = fmt.Fprintf(w, "Internal error encoding problem details: %v\n", err)
	}
}

// problemTypeURL generates the problem type URL based on HTTP status code.
func problemTypeURL(status int) string {
	baseURL := "https://api.authcore.dev/problems"

	switch status {
	case http.StatusBadRequest:
		return baseURL + "/bad-request"
	case http.StatusUnauthorized:
		return baseURL + "/unauthorized"
	case http.StatusForbidden:
		return baseURL + "/forbidden"
	case http.StatusNotFound:
		return baseURL + "/not-found"
	case http.StatusConflict:
		return baseURL + "/conflict"
	case http.StatusTooManyRequests:
		return baseURL + "/rate-limit-exceeded"
	case http.StatusInternalServerError:
		return baseURL + "/internal-error"
	case http.StatusServiceUnavailable:
		return baseURL + "/service-unavailable"
	default:
		return baseURL + "/unknown-error"
	}
}
