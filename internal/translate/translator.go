package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/mthorvald/audiogen/pkg/log"
)

// minCacheConfidence gates which provider results are worth memoizing.
const minCacheConfidence = 0.5

// Result is one provider translation plus the provider's own confidence in it.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Provider is the upstream translation backend.
type Provider interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error)
}

// CachedTranslator wraps a Provider with the shared cache and rate limiter.
// Cache hits bypass the limiter entirely; a miss with a full window fails
// fast with a RateLimitError before any upstream attempt. Low-confidence
// results are returned to the caller but never cached.
type CachedTranslator struct {
	provider Provider
	cache    *Cache
	limiter  *RateLimiter
	context  string
}

// NewCachedTranslator builds the standard translation stack. The context
// string is folded into cache keys so differently-prompted deployments never
// share entries.
func NewCachedTranslator(provider Provider, cache *Cache, limiter *RateLimiter, contextHint string) *CachedTranslator {
	return &CachedTranslator{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		context:  contextHint,
	}
}

func (t *CachedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	key := CacheKey(text, sourceLang, targetLang, t.context)
	if cached, ok := t.cache.Get(key); ok {
		log.Debug("Translation cache hit for %s->%s", sourceLang, targetLang)
		return cached, nil
	}

	if err := t.limiter.Allow(); err != nil {
		retryAfter := t.limiter.TimeUntilNextCall()
		log.Warn("Translation %s->%s rate limited, next slot in %s", sourceLang, targetLang, retryAfter.Round(time.Millisecond))
		return "", &RateLimitError{RetryAfter: retryAfter}
	}

	result, err := t.provider.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if result.Text == "" {
		return "", fmt.Errorf("provider returned empty translation for %s->%s", sourceLang, targetLang)
	}

	if result.Confidence > minCacheConfidence {
		t.cache.Put(key, result.Text)
	} else {
		log.Warn("Translation %s->%s confidence %.2f too low to cache", sourceLang, targetLang, result.Confidence)
	}
	return result.Text, nil
}

// CacheStats exposes the underlying cache counters for the status API.
func (t *CachedTranslator) CacheStats() CacheStats {
	return t.cache.Stats()
}
