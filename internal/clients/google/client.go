package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

const (
	// DefaultBaseURL is the Google Maps Platform host
	DefaultBaseURL = "https://maps.googleapis.com"
	// DefaultTimeout bounds connect and read for a single fetch
	DefaultTimeout = 15 * time.Second

	directionsPath   = "/maps/api/directions/json"
	maxResponseBytes = 8 << 20
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches routes from the Google Directions API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	timeout    time.Duration
}

// NewClient creates a new Directions API client with the default host and timeout
func NewClient(apiKey string) *Client {
	return NewClientWithTimeout(apiKey, DefaultBaseURL, DefaultTimeout)
}

// NewClientWithTimeout creates a client for baseURL whose requests give up after timeout
func NewClientWithTimeout(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// NewClientWithHTTPDoer creates a client that sends requests through doer
func NewClientWithHTTPDoer(apiKey, baseURL string, doer HTTPDoer) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
		timeout:    DefaultTimeout,
	}
}

// SetTimeout changes the per-fetch deadline
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

// FetchRoute requests directions between two points for a travel profile.
// All failures are *routing.DirectionsError.
func (c *Client) FetchRoute(ctx context.Context, origin, destination geo.Point, profile routing.TravelProfile) (*routing.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("origin", formatLatLng(origin))
	params.Set("destination", formatLatLng(destination))
	params.Set("mode", profile.APIMode())
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, routing.NewNetworkError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, routing.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, routing.NewTransportError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, routing.NewNetworkError(fmt.Errorf("failed to read response: %w", err))
	}

	route, err := routing.Parse(body, profile)
	if err != nil {
		return nil, err
	}

	route.Origin = origin
	route.Destination = destination
	return route, nil
}

func formatLatLng(p geo.Point) string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}
