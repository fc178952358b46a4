package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"certledger/internal/certificate/models"
	"certledger/internal/platform/redis"
)

// VerifyFunc is the operation CachedVerifier wraps.
type VerifyFunc interface {
	Verify(ctx context.Context, id, tag string) (models.VerificationResult, error)
}

// CachedVerifier is a read-through cache over the Verifier. Found results are
// cached with a TTL; absence is never cached, since a lagging node view must
// not pin "not found" for a record that is about to confirm.
type CachedVerifier struct {
	inner VerifyFunc
	cache *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

// WrapVerifier layers the redis cache over a verifier. With no redis client
// configured the inner verifier is returned untouched.
func WrapVerifier(inner VerifyFunc, cache *redis.Client, ttl time.Duration, log *slog.Logger) VerifyFunc {
	if cache == nil {
		return inner
	}
	return &CachedVerifier{inner: inner, cache: cache, ttl: ttl, log: log}
}

func (c *CachedVerifier) Verify(ctx context.Context, id, tag string) (models.VerificationResult, error) {
	key := "certledger:verify:" + id

	if raw, err := c.cache.Get(ctx, key).Bytes(); err == nil {
		var res models.VerificationResult
		if err := json.Unmarshal(raw, &res); err == nil && res.Found {
			return res, nil
		}
	}

	res, err := c.inner.Verify(ctx, id, tag)
	if err != nil || !res.Found {
		return res, err
	}

	// Cache failures are not the caller's problem.
	if raw, err := json.Marshal(res); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.WarnContext(ctx, "verify cache write failed", "error", err.Error())
		}
	}
	return res, nil
}
