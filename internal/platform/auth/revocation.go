package auth

import (
	"context"
	"time"

	"github.com/PTAIM/backend/internal/platform/cache"
)

// RevocationStore remembers logged-out token ids until their natural
// expiry. Entries live in the shared cache so every replica sees them.
type RevocationStore struct {
	cache cache.Cache
	now   func() time.Time
}

func NewRevocationStore(c cache.Cache) *RevocationStore {
	return &RevocationStore{cache: c, now: time.Now}
}

func revocationKey(jti string) string {
	return cache.Key("revoked", jti)
}

// Revoke marks jti as revoked. Already expired tokens are not recorded.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, revocationKey(jti), []byte("1"), ttl)
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	return s.cache.Exists(ctx, revocationKey(jti))
}
