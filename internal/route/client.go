package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/onnwee/placereviews/internal/geo"
)

// Defaults for the public OSRM demo server.
const (
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "driving"
	DefaultTimeout = 8 * time.Second
)

// maxBodyBytes bounds how much of a routing response is read.
const maxBodyBytes = 8 << 20

// Routing failures. All of them trigger the straight-line fallback.
var (
	ErrRouteStatus    = errors.New("routing service returned non-success status")
	ErrNoRoute        = errors.New("routing service returned no route")
	ErrMalformedRoute = errors.New("routing service returned malformed route")
)

// ClientConfig configures an OSRM-compatible routing client.
type ClientConfig struct {
	BaseURL string
	Profile string
	Timeout time.Duration
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// Client queries an OSRM-compatible /route/v1 endpoint.
type Client struct {
	baseURL string
	profile string
	http    *http.Client
}

// NewClient creates a routing client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			}),
		}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: cfg.Profile,
		http:    client,
	}
}

type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"` // meters
	Geometry struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"` // [lng, lat]
	} `json:"geometry"`
}

// URL builds the request URL for a route. Coordinates go out as lng,lat.
func (c *Client) URL(origin, dest geo.Point) string {
	coords := fmt.Sprintf("%s,%s;%s,%s",
		formatCoord(origin.Lng), formatCoord(origin.Lat),
		formatCoord(dest.Lng), formatCoord(dest.Lat),
	)
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	return fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, url.PathEscape(c.profile), coords, q.Encode())
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// Route fetches the first route between origin and dest with its geometry
// flipped back to (lat, lng).
func (c *Client) Route(ctx context.Context, origin, dest geo.Point) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(origin, dest), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reach routing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: %d", ErrRouteStatus, resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedRoute, err)
	}
	if len(body.Routes) == 0 {
		return Result{}, ErrNoRoute
	}

	route := body.Routes[0]
	if len(route.Geometry.Coordinates) == 0 {
		return Result{}, fmt.Errorf("%w: empty geometry", ErrMalformedRoute)
	}
	if math.IsNaN(route.Distance) || math.IsInf(route.Distance, 0) || route.Distance < 0 {
		return Result{}, fmt.Errorf("%w: distance %v", ErrMalformedRoute, route.Distance)
	}

	path := make([]geo.Point, 0, len(route.Geometry.Coordinates))
	for _, coord := range route.Geometry.Coordinates {
		p := geo.Point{Lat: coord[1], Lng: coord[0]}
		if !p.Valid() {
			return Result{}, fmt.Errorf("%w: coordinate %v", ErrMalformedRoute, coord)
		}
		path = append(path, p)
	}

	km := route.Distance / 1000
	return Result{Path: path, DistanceKm: &km}, nil
}
