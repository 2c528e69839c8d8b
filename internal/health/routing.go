package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRoutingURLMissing is returned when no routing base URL is configured.
var ErrRoutingURLMissing = errors.New("routing url not configured")

// RoutingChecker reports whether the routing service is reachable. Route
// lookups fall back to straight lines, so readiness treats it as advisory.
type RoutingChecker struct {
	url    string
	client *http.Client
}

// NewRoutingChecker creates a checker for the routing service at baseURL.
func NewRoutingChecker(baseURL string) *RoutingChecker {
	return &RoutingChecker{
		url: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck issues a GET to the base URL. Any response below 500 counts as
// reachable; OSRM answers 400 on its root path.
func (c *RoutingChecker) HealthCheck(ctx context.Context) error {
	if c.url == "" {
		return ErrRoutingURLMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach routing service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("routing service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
