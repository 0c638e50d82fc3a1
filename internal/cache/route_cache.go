package cache

import (
	"fmt"
	"time"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

const routeSource = "directions"

// RouteCache stores fetched routes keyed by request, so repeated requests
// for the same trip skip the directions API
type RouteCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewRouteCache creates a route cache backed by cache
func NewRouteCache(cache *Cache, ttl time.Duration) *RouteCache {
	return &RouteCache{cache: cache, ttl: ttl}
}

// RouteKey builds the cache key for a request. Coordinates are rounded to
// 5 decimals (about 1 m) and motorized profiles share a key.
func RouteKey(profile routing.TravelProfile, origin, destination geo.Point) string {
	return fmt.Sprintf("route:%s:%.5f,%.5f:%.5f,%.5f",
		profile.APIMode(),
		origin.Latitude, origin.Longitude,
		destination.Latitude, destination.Longitude)
}

// GetRoute returns a cached fresh route for the request
func (r *RouteCache) GetRoute(profile routing.TravelProfile, origin, destination geo.Point) (*routing.Route, bool) {
	if r == nil || r.ttl <= 0 {
		return nil, false
	}

	var route routing.Route
	found, err := r.cache.Get(RouteKey(profile, origin, destination), &route)
	if err != nil || !found {
		return nil, false
	}
	return &route, true
}

// SetRoute stores a fetched route. Fallback routes are never cached.
func (r *RouteCache) SetRoute(profile routing.TravelProfile, origin, destination geo.Point, route *routing.Route) error {
	if r == nil || r.ttl <= 0 || route == nil || route.Fallback {
		return nil
	}
	return r.cache.Set(RouteKey(profile, origin, destination), route, r.ttl, routeSource)
}
