package revocation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nkiryanov/blog/internal/apperrors"
	"github.com/nkiryanov/blog/internal/models"
)

const defaultKeyPrefix = "jwt-bl:"

// Key-value storage with native per-key expiry
type KV interface {
	// Set key to value; the key disappears after ttl
	SetWithTTL(ctx context.Context, key string, value string, ttl time.Duration) error

	// Whether the key exists
	Exists(ctx context.Context, key string) (bool, error)
}

type Config struct {
	// Key prefix to distinguish blacklisted tokens from other keys
	// If not set than default is used
	KeyPrefix string

	// Clock. time.Now if not set
	Now func() time.Time
}

// Store keeps tokens revoked before their natural expiry
// Every entry lives exactly until the token itself expires, so the store holds
// only revoked-but-still-valid tokens
type Store struct {
	kv     KV
	prefix string
	now    func() time.Time
}

func New(cfg Config, kv KV) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Store{
		kv:     kv,
		prefix: cfg.KeyPrefix,
		now:    cfg.Now,
	}
}

func (s *Store) key(jti string) string {
	return s.prefix + jti
}

// Revoke token with the claims until it expires
// Already expired tokens are skipped: they can't pass verification anyway
func (s *Store) Revoke(ctx context.Context, claims models.TokenClaims) error {
	ttl := claims.ExpiresAt.Unix() - s.now().Unix()
	if ttl <= 0 {
		return nil
	}

	err := s.kv.SetWithTTL(
		ctx,
		s.key(claims.ID),
		strconv.FormatInt(claims.UserID, 10),
		time.Duration(ttl)*time.Second,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrRevocationUnavailable, err)
	}

	return nil
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := s.kv.Exists(ctx, s.key(jti))
	if err != nil {
		return false, fmt.Errorf("%w: %w", apperrors.ErrRevocationUnavailable, err)
	}

	return revoked, nil
}
