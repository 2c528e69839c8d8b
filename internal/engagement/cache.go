// Package engagement holds the session-scoped cache of enriched reviews used by
// search and reputation ranking.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/placereviews/internal/ranking"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/tracing"
)

// DefaultConcurrency bounds simultaneous media resolutions during a load.
const DefaultConcurrency = 8

// loadTimeout bounds a shared load, which is detached from the caller that started it.
const loadTimeout = 30 * time.Second

// MediaResolver turns raw media references into renderable URLs. It never fails.
type MediaResolver interface {
	Resolve(ctx context.Context, raw string) string
}

// EnrichedReview is a review with its media resolved and engagement counted.
type EnrichedReview struct {
	review.Review
	CoverURL  string `json:"cover_url,omitempty"`
	AvatarURL string `json:"author_avatar_url,omitempty"`
	Likes     int    `json:"likes"`
	Dislikes  int    `json:"dislikes"`
}

// SearchResult is the outcome of a search. NoQuery is set when the term was
// empty, which is distinct from a query with zero matches.
type SearchResult struct {
	Term    string           `json:"term"`
	NoQuery bool             `json:"no_query"`
	Reviews []EnrichedReview `json:"reviews"`
}

// Config configures a Cache.
type Config struct {
	// Concurrency bounds the enrichment task group. Defaults to DefaultConcurrency.
	Concurrency int
	// Ranks maps like totals to tiers. Defaults to ranking.DefaultTable().
	Ranks   *ranking.Table
	Logger  *slog.Logger
	Metrics *Metrics
}

type snapshot struct {
	reviews    []EnrichedReview
	likeTotals map[string]int
	loadedAt   time.Time
}

// Cache is an in-memory store of enriched reviews populated by one bulk load.
// It has no TTL: it is reloaded only when never populated or after Invalidate.
type Cache struct {
	source      review.Lister
	media       MediaResolver
	ranks       *ranking.Table
	concurrency int
	logger      *slog.Logger
	metrics     *Metrics

	loads singleflight.Group

	mu   sync.RWMutex
	snap *snapshot
}

// NewCache creates an empty Cache.
func NewCache(source review.Lister, media MediaResolver, cfg Config) *Cache {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Ranks == nil {
		cfg.Ranks = ranking.DefaultTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		source:      source,
		media:       media,
		ranks:       cfg.Ranks,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Load fetches every review, resolves its cover and author avatar and
// publishes the batch atomically together with the per-author like totals.
// Concurrent calls share one fetch. On failure the previous contents are kept.
func (c *Cache) Load(ctx context.Context) ([]EnrichedReview, error) {
	v, err := c.shared(ctx, false)
	if err != nil {
		return nil, err
	}
	return cloneEntries(v.([]EnrichedReview)), nil
}

// shared joins the in-flight load or starts one. The load runs on a context
// detached from any single caller; each caller stops waiting when its own ctx
// is done without failing the others.
func (c *Cache) shared(ctx context.Context, reuse bool) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := c.loads.DoChan("load", func() (any, error) {
		if reuse {
			if snap := c.current(); snap != nil {
				return snap.reviews, nil
			}
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return c.load(loadCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context) (_ []EnrichedReview, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "engagement.load")
	defer func() { endSpan(err) }()

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveLoad(err, time.Since(start))
		}
	}()

	reviews, err := c.source.ListReviews(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to load reviews", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	enriched := make([]EnrichedReview, len(reviews))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, r := range reviews {
		g.Go(func() error {
			enriched[i] = c.enrich(gctx, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A load that timed out must not publish a partially resolved batch.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &snapshot{
		reviews:    enriched,
		likeTotals: LikeTotals(reviews),
		loadedAt:   time.Now(),
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	tracing.SetAttributes(ctx, attribute.Int("reviews", len(enriched)))
	c.logger.DebugContext(ctx, "engagement cache loaded",
		slog.Int("reviews", len(enriched)),
		slog.Int("authors", len(snap.likeTotals)),
		slog.Duration("duration", time.Since(start)),
	)
	return enriched, nil
}

// enrich resolves cover then avatar for one review.
func (c *Cache) enrich(ctx context.Context, r review.Review) EnrichedReview {
	e := EnrichedReview{
		Review:   r,
		Likes:    r.Likes(),
		Dislikes: r.Dislikes(),
	}
	if c.media == nil {
		e.CoverURL = r.Cover()
		e.AvatarURL = r.Author.AvatarURL
		return e
	}
	e.CoverURL = c.media.Resolve(ctx, r.Cover())
	e.AvatarURL = c.media.Resolve(ctx, r.Author.AvatarURL)
	return e
}

// Ready reports whether the cache has been populated.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap != nil
}

// LoadedAt returns when the current contents were published.
func (c *Cache) LoadedAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return time.Time{}, false
	}
	return c.snap.loadedAt, true
}

// Invalidate drops the cached contents; the next search reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *Cache) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Cache) ensureLoaded(ctx context.Context) (*snapshot, error) {
	if snap := c.current(); snap != nil {
		return snap, nil
	}
	if _, err := c.shared(ctx, true); err != nil {
		return nil, err
	}
	if snap := c.current(); snap != nil {
		return snap, nil
	}
	// Invalidated between publish and read.
	return &snapshot{likeTotals: map[string]int{}}, nil
}

// Search filters the cached reviews by a case-insensitive substring of the
// place name, the content or the space-joined hashtags. An empty term yields
// NoQuery without touching the cache; otherwise the cache is loaded first
// when it has never been populated.
func (c *Cache) Search(ctx context.Context, term string) (SearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return SearchResult{Term: term, NoQuery: true, Reviews: []EnrichedReview{}}, nil
	}

	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return SearchResult{}, err
	}

	matches := make([]EnrichedReview, 0)
	for _, e := range snap.reviews {
		if Matches(e.Review, needle) {
			matches = append(matches, cloneEntry(e))
		}
	}
	return SearchResult{Term: term, Reviews: matches}, nil
}

// Matches reports whether r matches an already lowercased, trimmed needle.
func Matches(r review.Review, needle string) bool {
	if strings.Contains(strings.ToLower(r.Place.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Content), needle) {
		return true
	}
	tags := strings.ToLower(strings.Join(r.Hashtags, " "))
	return strings.Contains(tags, needle)
}

// LikeTotals returns a copy of the per-author like totals of the current
// contents, or nil when the cache is empty.
func (c *Cache) LikeTotals() map[string]int {
	snap := c.current()
	if snap == nil {
		return nil
	}
	out := make(map[string]int, len(snap.likeTotals))
	for k, v := range snap.likeTotals {
		out[k] = v
	}
	return out
}

// RankFor ranks an author by the likes received across the cached reviews.
func (c *Cache) RankFor(authorID string) ranking.Rank {
	total := 0
	if snap := c.current(); snap != nil {
		total = snap.likeTotals[authorID]
	}
	return c.ranks.RankFor(total)
}

// LikeTotals sums like votes per review author.
func LikeTotals(reviews []review.Review) map[string]int {
	totals := make(map[string]int)
	for _, r := range reviews {
		if r.Author.ID == "" {
			continue
		}
		totals[r.Author.ID] += r.Likes()
	}
	return totals
}

func cloneEntry(e EnrichedReview) EnrichedReview {
	e.Review = e.Review.Clone()
	return e
}

func cloneEntries(in []EnrichedReview) []EnrichedReview {
	out := make([]EnrichedReview, len(in))
	for i, e := range in {
		out[i] = cloneEntry(e)
	}
	return out
}
