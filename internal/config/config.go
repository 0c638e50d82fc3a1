package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/multierr"

	"github.com/dpup/geonav/server/internal/clients/google"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// Config represents the complete server configuration.
// Sections are loaded from prefab.yaml and PF__ environment variables.
type Config struct {
	Navigation NavigationConfig `koanf:"navigation"`
	Directions DirectionsConfig `koanf:"directions"`
	Guidance   GuidanceConfig   `koanf:"guidance"`
	Cache      CacheConfig      `koanf:"cache"`
}

// NavigationConfig holds route progress tracking settings
type NavigationConfig struct {
	DefaultProfile          string        `koanf:"default_profile"`
	PollInterval            time.Duration `koanf:"poll_interval"`
	StepProximityMeters     float64       `koanf:"step_proximity_meters"`
	ArrivalThresholdMeters  float64       `koanf:"arrival_threshold_meters"`
	OffRouteThresholdMeters float64       `koanf:"off_route_threshold_meters"`
}

// DirectionsConfig holds Google Directions API settings
type DirectionsConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// GuidanceConfig holds settings for condensing instructions into AR cues.
// The OpenAI condenser is used only when an API key is set.
type GuidanceConfig struct {
	OpenAIAPIKey string `koanf:"openai_api_key"`
	Model        string `koanf:"model"`
}

// CacheConfig holds cache lifetimes
type CacheConfig struct {
	RouteTTL        time.Duration `koanf:"route_ttl"`
	CueTTL          time.Duration `koanf:"cue_ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	opts := navigation.DefaultOptions()
	return &Config{
		Navigation: NavigationConfig{
			DefaultProfile:          routing.Walking.String(),
			PollInterval:            time.Second,
			StepProximityMeters:     opts.StepProximityMeters,
			ArrivalThresholdMeters:  opts.ArrivalThresholdMeters,
			OffRouteThresholdMeters: opts.OffRouteThresholdMeters,
		},
		Directions: DirectionsConfig{
			BaseURL: google.DefaultBaseURL,
			Timeout: google.DefaultTimeout,
		},
		Guidance: GuidanceConfig{
			Model: "gpt-4o-mini",
		},
		Cache: CacheConfig{
			RouteTTL:        10 * time.Minute,
			CueTTL:          24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var err error

	if _, perr := routing.ParseTravelProfile(c.Navigation.DefaultProfile); perr != nil {
		err = multierr.Append(err, fmt.Errorf("navigation.default_profile: %w", perr))
	}
	if c.Navigation.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("navigation.poll_interval must be positive"))
	}
	if c.Navigation.StepProximityMeters <= 0 {
		err = multierr.Append(err, errors.New("navigation.step_proximity_meters must be positive"))
	}
	if c.Navigation.ArrivalThresholdMeters <= 0 {
		err = multierr.Append(err, errors.New("navigation.arrival_threshold_meters must be positive"))
	}
	if c.Navigation.OffRouteThresholdMeters <= 0 {
		err = multierr.Append(err, errors.New("navigation.off_route_threshold_meters must be positive"))
	}

	if c.Directions.APIKey == "" {
		err = multierr.Append(err, errors.New("directions.api_key is required"))
	}
	if u, perr := url.Parse(c.Directions.BaseURL); perr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("directions.base_url %q is not an absolute URL", c.Directions.BaseURL))
	}
	if c.Directions.Timeout <= 0 {
		err = multierr.Append(err, errors.New("directions.timeout must be positive"))
	}

	if c.Guidance.OpenAIAPIKey != "" && c.Guidance.Model == "" {
		err = multierr.Append(err, errors.New("guidance.model is required when guidance.openai_api_key is set"))
	}

	if c.Cache.RouteTTL < 0 || c.Cache.CueTTL < 0 {
		err = multierr.Append(err, errors.New("cache TTLs must not be negative"))
	}
	if c.Cache.CleanupInterval <= 0 {
		err = multierr.Append(err, errors.New("cache.cleanup_interval must be positive"))
	}

	return err
}

// Profile returns the parsed default travel profile
func (n NavigationConfig) Profile() routing.TravelProfile {
	p, err := routing.ParseTravelProfile(n.DefaultProfile)
	if err != nil {
		return routing.Walking
	}
	return p
}

// TrackerOptions converts the navigation settings into tracker options
func (n NavigationConfig) TrackerOptions() navigation.Options {
	opts := navigation.DefaultOptions()
	opts.StepProximityMeters = n.StepProximityMeters
	opts.ArrivalThresholdMeters = n.ArrivalThresholdMeters
	opts.OffRouteThresholdMeters = n.OffRouteThresholdMeters
	return opts
}

// GuidanceEnabled reports whether the OpenAI condenser should be used
func (c *Config) GuidanceEnabled() bool {
	return c.Guidance.OpenAIAPIKey != ""
}
