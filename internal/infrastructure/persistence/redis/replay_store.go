package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/dpopcore/authcore/internal/infrastructure/security/replay"
)

// defaultReplayPrefix namespaces DPoP jti keys so they can't collide with
// unrelated keys sharing the same Redis database.
const defaultReplayPrefix = "dpop:replay:"

// ReplayStore is a Redis-backed replay.Store: SET key "1" NX EX ttl,
// fail-closed on any backend error.
type ReplayStore struct {
	client *Client
	prefix string
}

// NewReplayStore builds a ReplayStore using the default "dpop:replay:" key
// prefix.
func NewReplayStore(client *Client) *ReplayStore {
	return NewReplayStoreWithPrefix(client, defaultReplayPrefix)
}

// NewReplayStoreWithPrefix builds a ReplayStore with a custom key prefix,
// useful to separate environments sharing one Redis instance.
func NewReplayStoreWithPrefix(client *Client, prefix string) *ReplayStore {
	return &ReplayStore{client: client, prefix: prefix}
}

// CheckAndStore implements replay.Store via SETNX semantics: the first
// caller to present key within the ttl window wins; every later caller
// observes stored=false.
func (s *ReplayStore) CheckAndStore(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}

	fullKey := s.prefix + key

	ok, err := s.client.rdb.SetNX(ctx, fullKey, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %s", replay.ErrBackend, err.Error())
	}

	return ok, nil
}
