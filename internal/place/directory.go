// Package place serves the map view: reviewed places with usable coordinates
// and the reviews attached to each of them.
package place

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/placereviews/internal/geo"
	"github.com/onnwee/placereviews/internal/review"
)

const resolveConcurrency = 8

// MediaResolver turns raw media references into renderable URLs.
type MediaResolver interface {
	Resolve(ctx context.Context, raw string) string
}

// Marker is a place pinned on the map.
type Marker struct {
	review.Place
	Point geo.Point `json:"point"`
	Cell  string    `json:"cell"`
}

// ReviewView is a review listed under a place.
type ReviewView struct {
	ID            string    `json:"id"`
	Body          string    `json:"body"`
	Rating        float64   `json:"rating"`
	AuthorName    string    `json:"author_name"`
	AuthorInitial string    `json:"author_initial"`
	AvatarURL     string    `json:"author_avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Directory lists reviewed places.
type Directory struct {
	source review.PlaceLister
	media  MediaResolver
	logger *slog.Logger
}

// NewDirectory creates a Directory.
func NewDirectory(source review.PlaceLister, media MediaResolver, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{source: source, media: media, logger: logger}
}

// ReviewedPlaces returns every place that has at least one review and finite
// coordinates. Places lacking either coordinate are left out.
func (d *Directory) ReviewedPlaces(ctx context.Context) ([]Marker, error) {
	places, err := d.source.ListPlaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	reviewed, err := d.source.ReviewedPlaceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed places: %w", err)
	}

	markers := make([]Marker, 0, len(reviewed))
	skipped := 0
	for _, p := range places {
		if _, ok := reviewed[p.ID]; !ok {
			continue
		}
		pt, ok := p.Point()
		if !ok {
			skipped++
			continue
		}
		markers = append(markers, Marker{Place: p, Point: pt, Cell: pt.Cell()})
	}
	if skipped > 0 {
		d.logger.DebugContext(ctx, "reviewed places without coordinates omitted", slog.Int("count", skipped))
	}
	return markers, nil
}

// PlaceReviews returns a place's reviews newest first with author avatars resolved.
func (d *Directory) PlaceReviews(ctx context.Context, placeID string) ([]ReviewView, error) {
	reviews, err := d.source.ListReviewsByPlace(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for place %s: %w", placeID, err)
	}

	views := make([]ReviewView, len(reviews))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, r := range reviews {
		g.Go(func() error {
			views[i] = ReviewView{
				ID:            r.ID,
				Body:          r.Body(),
				Rating:        review.ClampRating(r.Rating),
				AuthorName:    r.Author.Name(),
				AuthorInitial: r.Author.Initial(),
				AvatarURL:     d.resolve(gctx, r.Author.AvatarURL),
				CreatedAt:     r.CreatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func (d *Directory) resolve(ctx context.Context, raw string) string {
	if d.media == nil {
		return raw
	}
	return d.media.Resolve(ctx, raw)
}
