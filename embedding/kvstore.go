package embedding

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/marketsearch/errors"
)

// KVStore persists embedding cache entries in a NATS JetStream KV
// bucket so warmed vectors survive process restarts. Entries are
// content-addressed by cache key and stored as JSON.
type KVStore struct {
	bucket jetstream.KeyValue
}

// NewKVStore wraps a JetStream KV bucket as an embedding persistence tier.
func NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{bucket: bucket}
}

// Get retrieves an entry by cache key. Absent keys return found=false
// without error.
func (s *KVStore) Get(ctx context.Context, key string) (cachedVector, bool, error) {
	entry, err := s.bucket.Get(ctx, sanitizeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return cachedVector{}, false, nil
		}
		return cachedVector{}, false, errors.WrapTransient(errors.ErrStorageUnavailable, "embedding", "kvGet", err.Error())
	}

	var cached cachedVector
	if err := json.Unmarshal(entry.Value(), &cached); err != nil {
		return cachedVector{}, false, errors.Wrap(err, "embedding", "kvGet", "unmarshal")
	}
	return cached, true, nil
}

// Put stores an entry under the cache key.
func (s *KVStore) Put(ctx context.Context, key string, cached cachedVector) error {
	data, err := json.Marshal(cached)
	if err != nil {
		return errors.Wrap(err, "embedding", "kvPut", "marshal")
	}
	if _, err := s.bucket.Put(ctx, sanitizeKey(key), data); err != nil {
		return errors.WrapTransient(errors.ErrStorageUnavailable, "embedding", "kvPut", err.Error())
	}
	return nil
}

// sanitizeKey maps cache keys onto the NATS KV key alphabet. Colons in
// "embedding:{model}:{hash}" become dots; other disallowed runes
// become underscores.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.' || r == '/':
			return r
		case r == ':':
			return '.'
		default:
			return '_'
		}
	}, key)
}
