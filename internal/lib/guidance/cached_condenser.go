package guidance

import (
	"context"
	"time"

	"github.com/dpup/prefab/logging"
)

// DefaultCueTTL is how long condensed cues are kept
const DefaultCueTTL = 24 * time.Hour

// CachedCondenser wraps a Condenser with content-based caching. When the
// wrapped condenser fails, the rule based cue is returned instead.
type CachedCondenser struct {
	condenser Condenser
	cache     CueCache
	hasher    *ContentHasher
	ttl       time.Duration
}

// NewCachedCondenser creates a condenser with content-based caching
func NewCachedCondenser(condenser Condenser, cache CueCache, ttl time.Duration) *CachedCondenser {
	if ttl <= 0 {
		ttl = DefaultCueTTL
	}
	return &CachedCondenser{
		condenser: condenser,
		cache:     cache,
		hasher:    NewContentHasher(),
		ttl:       ttl,
	}
}

// Condense implements Condenser. It checks the cache, then the wrapped
// condenser, and caches successful results.
func (c *CachedCondenser) Condense(ctx context.Context, instruction string) (Cue, error) {
	ctx = logging.EnsureLogger(ctx)
	contentHash := c.hasher.HashInstruction(instruction)

	if cached, found, err := c.cache.GetCue(contentHash); err == nil && found {
		logging.Debugw(ctx, "Cue cache hit", "hash", contentHash[:8])
		return cached, nil
	}

	cue, err := c.condenser.Condense(ctx, instruction)
	if err != nil {
		logging.Warnw(ctx, "Cue condensing failed, using rule based cue",
			"hash", contentHash[:8], "error", err)
		return ruleCue(instruction), nil
	}

	if err := c.cache.SetCue(contentHash, cue, c.ttl); err != nil {
		logging.Warnw(ctx, "Failed to cache cue", "error", err)
	}

	return cue, nil
}

// HealthCheck delegates to the wrapped condenser
func (c *CachedCondenser) HealthCheck(ctx context.Context) error {
	return c.condenser.HealthCheck(ctx)
}

// IsCached checks if an instruction would be served from cache
func (c *CachedCondenser) IsCached(instruction string) bool {
	return c.cache.IsCueCached(c.hasher.HashInstruction(instruction))
}
