package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/geonav/server/internal/cache"
	"github.com/dpup/geonav/server/internal/clients/google"
	"github.com/dpup/geonav/server/internal/config"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// Initialize cache and expire stale routes and cues in the background
	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(logging.EnsureLogger(context.Background()), appConfig.Cache.CleanupInterval)
	routeCache := cache.NewRouteCache(cacheInstance, appConfig.Cache.RouteTTL)

	directionsClient := google.NewClientWithTimeout(
		appConfig.Directions.APIKey, appConfig.Directions.BaseURL, appConfig.Directions.Timeout)

	var condenser guidance.Condenser = guidance.NewRuleCondenser()
	if appConfig.GuidanceEnabled() {
		model := appConfig.Guidance.Model
		condenser = guidance.NewCachedCondenser(
			guidance.NewOpenAICondenser(appConfig.Guidance.OpenAIAPIKey, model),
			cache.NewCueCacheAdapter(cacheInstance),
			appConfig.Cache.CueTTL,
		)
		log.Printf("OpenAI cue condensing enabled with content-based caching (model: %s)", model)
	} else {
		log.Printf("OpenAI API key not set, using rule-based cues")
	}

	navigationService := services.NewNavigationService(
		directionsClient,
		routeCache,
		condenser,
		appConfig.Navigation.Profile(),
		appConfig.Navigation.TrackerOptions(),
	)
	handler := services.NewNavigationHandler(navigationService)

	log.Printf("Navigation API Server starting")
	log.Printf("Default travel profile: %s", appConfig.Navigation.Profile())

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	handlers := handler.HandlerFuncs()
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc(services.PathStart, handlers[services.PathStart]),
		prefab.WithHTTPHandlerFunc(services.PathPosition, handlers[services.PathPosition]),
		prefab.WithHTTPHandlerFunc(services.PathProfile, handlers[services.PathProfile]),
		prefab.WithHTTPHandlerFunc(services.PathStop, handlers[services.PathStop]),
		prefab.WithHTTPHandlerFunc(services.PathCurrent, handlers[services.PathCurrent]),
		prefab.WithHTTPHandlerFunc(services.PathEstimates, handlers[services.PathEstimates]),
		prefab.WithHTTPHandlerFunc(services.PathRouteKML, handlers[services.PathRouteKML]),
		prefab.WithHTTPHandlerFunc(services.PathStream, handlers[services.PathStream]),
	)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system.
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix,
// layered over the defaults.
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := map[string]interface{}{
		"navigation": &appConfig.Navigation,
		"directions": &appConfig.Directions,
		"guidance":   &appConfig.Guidance,
		"cache":      &appConfig.Cache,
	}
	for key, target := range sections {
		if err := prefab.Config.Unmarshal(key, target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", key, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return appConfig
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>geonav</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">geonav</span>

Turn-by-turn navigation core for geospatial AR clients. Fetches walking
and driving directions, tracks progress along the route and condenses
each instruction into a short overlay cue.

<span class="header">API Endpoints:</span>

  POST /api/v1/navigation/start      - Start navigating {origin, destination, profile}
  POST /api/v1/navigation/position   - Report a pose {lat, lng, heading, accuracies}
  POST /api/v1/navigation/profile    - Change travel profile {profile}
  POST /api/v1/navigation/stop       - Stop navigating
  GET  <a href="/api/v1/navigation/current">/api/v1/navigation/current</a>    - Current navigation snapshot
  GET  /api/v1/navigation/estimates  - Straight-line travel times ?origin=lat,lng&amp;destination=lat,lng
  GET  <a href="/api/v1/navigation/route.kml">/api/v1/navigation/route.kml</a>  - Active route and progress as KML
  GET  /api/v1/navigation/stream     - WebSocket: send poses, receive snapshot updates

<span class="header">Travel Profiles:</span>
  walking, two_wheeler, four_wheeler

<span class="header">Data Sources:</span>
  • Google Directions API - Routes and step instructions
  • OpenAI (optional)     - Condensed AR cues
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
