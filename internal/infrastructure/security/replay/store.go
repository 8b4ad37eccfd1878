// Package replay implements the atomic check-and-store contract that
// backs DPoP jti replay defense: the first presentation of a key
// succeeds, any further presentation within the same window is rejected,
// and a backend failure is reported distinctly so callers can fail
// closed.
package replay

import (
	"context"
	"errors"
	"time"
)

// ErrBackend is the sentinel wrapped by any error Store.CheckAndStore
// returns due to a storage backend failure. Callers must treat this
// identically to a detected replay — fail closed, never open.
var ErrBackend = errors.New("replay: backend error")

// Store is the minimal capability DPoP replay defense needs: atomically
// record a key if absent, with a TTL, and report whether it was already
// present.
type Store interface {
	// CheckAndStore records key with the given ttl if it is not already
	// present. It returns stored=true the first time a key is seen,
	// stored=false if the key was already present (a replay). A non-nil
	// error (always satisfying errors.Is(err, ErrBackend)) means the
	// backend itself failed; the caller must treat that as an auth
	// failure, not as "first time".
	CheckAndStore(ctx context.Context, key string, ttl time.Duration) (stored bool, err error)
}
