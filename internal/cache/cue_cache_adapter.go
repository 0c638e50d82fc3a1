package cache

import (
	"fmt"
	"time"

	"github.com/dpup/geonav/server/internal/lib/guidance"
)

// CueCacheAdapter makes the main Cache implement the guidance.CueCache interface
type CueCacheAdapter struct {
	cache *Cache
}

// NewCueCacheAdapter creates an adapter for cue caching
func NewCueCacheAdapter(cache *Cache) *CueCacheAdapter {
	return &CueCacheAdapter{cache: cache}
}

func cueKey(contentHash string) string {
	return fmt.Sprintf("cue:%s", contentHash)
}

// SetCue implements guidance.CueCache
func (a *CueCacheAdapter) SetCue(contentHash string, cue guidance.Cue, ttl time.Duration) error {
	return a.cache.Set(cueKey(contentHash), cue, ttl, "cue")
}

// GetCue implements guidance.CueCache
func (a *CueCacheAdapter) GetCue(contentHash string) (guidance.Cue, bool, error) {
	var cue guidance.Cue
	found, err := a.cache.Get(cueKey(contentHash), &cue)
	if err != nil {
		return guidance.Cue{}, false, err
	}
	return cue, found, nil
}

// IsCueCached implements guidance.CueCache
func (a *CueCacheAdapter) IsCueCached(contentHash string) bool {
	return !a.cache.IsStale(cueKey(contentHash))
}
