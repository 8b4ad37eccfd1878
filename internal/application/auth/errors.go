package auth

import "errors"

// ErrUnauthorized is the sentinel every refresh-path rejection wraps. The
// HTTP edge collapses it to 401, same as access-token and DPoP failures.
var ErrUnauthorized = errors.New("auth: unauthorized")
