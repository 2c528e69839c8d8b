// Package route resolves travel paths between two coordinates, falling back to
// a straight great-circle segment whenever the routing service cannot answer.
package route

import (
	"context"
	"log/slog"

	"github.com/onnwee/placereviews/internal/geo"
)

// Result is a path in (lat, lng) order with its length.
// An empty Result (no path, nil distance) means no route could be attempted;
// its Path is still non-nil so it encodes as [].
type Result struct {
	Path       []geo.Point `json:"path"`
	DistanceKm *float64    `json:"distance_km,omitempty"`
	// Approximate is set when the path is the straight-line fallback.
	Approximate bool `json:"approximate"`
}

// Empty reports whether r carries no route.
func (r Result) Empty() bool {
	return len(r.Path) == 0 && r.DistanceKm == nil
}

// StraightLine is the fallback route: exactly [origin, dest] with the
// haversine distance between them.
func StraightLine(origin, dest geo.Point) Result {
	d := geo.HaversineKm(origin, dest)
	return Result{
		Path:        []geo.Point{origin, dest},
		DistanceKm:  &d,
		Approximate: true,
	}
}

// Router is the primary route source.
type Router interface {
	Route(ctx context.Context, origin, dest geo.Point) (Result, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// Resolver asks the primary router and falls back to StraightLine on any error.
type Resolver struct {
	router  Router
	logger  *slog.Logger
	metrics *Metrics
}

// NewResolver creates a Resolver. A nil router always uses the fallback.
func NewResolver(router Router, cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{router: router, logger: cfg.Logger, metrics: cfg.Metrics}
}

// RouteBetween returns a route from origin to dest. It returns an empty Result
// when either point is missing or not finite, and otherwise never fails.
func (r *Resolver) RouteBetween(ctx context.Context, origin, dest *geo.Point) Result {
	if origin == nil || dest == nil || !origin.Valid() || !dest.Valid() {
		r.observe(OutcomeSkipped)
		return Result{Path: []geo.Point{}}
	}

	if r.router != nil {
		res, err := r.router.Route(ctx, *origin, *dest)
		if err == nil {
			r.observe(OutcomePrimary)
			return res
		}
		r.logger.WarnContext(ctx, "routing service failed, using straight line",
			slog.String("error", err.Error()),
		)
	}

	r.observe(OutcomeFallback)
	return StraightLine(*origin, *dest)
}

func (r *Resolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.IncRequest(outcome)
	}
}
