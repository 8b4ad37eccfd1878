package jwt

import "errors"

// ErrVerification is the sentinel every access-token verification failure
// wraps. The HTTP edge collapses any error satisfying errors.Is(err,
// ErrVerification) to a 401; the wrapped detail is logged, never returned
// to the client.
var ErrVerification = errors.New("access token verification failed")
