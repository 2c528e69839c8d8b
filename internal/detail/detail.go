// Package detail assembles the full view of a single review and handles
// posting comments to it.
package detail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/tracing"
	"github.com/onnwee/placereviews/internal/validate"
)

// FallbackCoverURL is shown for reviews without images.
const FallbackCoverURL = "https://images.unsplash.com/photo-1504674900247-0877df9cc836?auto=format&fit=crop&w=900&q=80"

// resolveConcurrency bounds simultaneous media resolutions per detail load.
const resolveConcurrency = 8

var (
	ErrUnauthenticated = errors.New("sign in to comment")
	ErrEmptyComment    = errors.New("comment is empty")
	ErrCommentTooLong  = errors.New("comment is too long")
)

// WriteError reports a rejected comment insert.
type WriteError struct {
	ReviewID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to post comment on review %s: %v", e.ReviewID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// MediaResolver turns raw media references into renderable URLs.
type MediaResolver interface {
	Resolve(ctx context.Context, raw string) string
}

// CommentView is a comment with its author's avatar resolved.
type CommentView struct {
	review.Comment
	AuthorName    string `json:"author_name"`
	AuthorInitial string `json:"author_initial"`
	AvatarURL     string `json:"author_avatar_url,omitempty"`
}

// Detail is an immutable snapshot of a review page.
type Detail struct {
	Review        review.Review `json:"review"`
	Body          string        `json:"body"`
	CoverURL      string        `json:"cover_url"`
	AuthorName    string        `json:"author_name"`
	AuthorInitial string        `json:"author_initial"`
	AvatarURL     string        `json:"author_avatar_url,omitempty"`
	Likes         int           `json:"likes"`
	Dislikes      int           `json:"dislikes"`
	Comments      []CommentView `json:"comments"`
}

// WithReview returns a copy of d whose review and counts reflect r.
// Resolved media is kept.
func (d Detail) WithReview(r review.Review) Detail {
	out := d
	out.Review = r.Clone()
	out.Likes = r.Likes()
	out.Dislikes = r.Dislikes()
	out.Comments = append([]CommentView(nil), d.Comments...)
	return out
}

// Source is the data the loader reads and writes.
type Source interface {
	review.Getter
	review.CommentStore
}

// Loader builds review details.
type Loader struct {
	source Source
	media  MediaResolver
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(source Source, media MediaResolver, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, media: media, logger: logger}
}

// Load fetches a review with votes and comments and resolves its cover,
// its author's avatar and every comment author's avatar concurrently.
func (l *Loader) Load(ctx context.Context, reviewID string) (_ Detail, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "detail.load")
	defer func() { endSpan(err) }()

	r, err := l.source.GetReview(ctx, reviewID)
	if err != nil {
		return Detail{}, err
	}

	d := Detail{
		Review:        *r,
		Body:          r.Body(),
		AuthorName:    r.Author.Name(),
		AuthorInitial: r.Author.Initial(),
		Likes:         r.Likes(),
		Dislikes:      r.Dislikes(),
		Comments:      make([]CommentView, len(r.Comments)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	g.Go(func() error {
		d.CoverURL = FallbackCoverURL
		if cover := l.resolve(gctx, r.Cover()); cover != "" {
			d.CoverURL = cover
		}
		return nil
	})
	g.Go(func() error {
		d.AvatarURL = l.resolve(gctx, r.Author.AvatarURL)
		return nil
	})
	for i, c := range r.Comments {
		g.Go(func() error {
			d.Comments[i] = l.commentView(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (l *Loader) commentView(ctx context.Context, c review.Comment) CommentView {
	return CommentView{
		Comment:       c,
		AuthorName:    c.Author.Name(),
		AuthorInitial: c.Author.Initial(),
		AvatarURL:     l.resolve(ctx, c.Author.AvatarURL),
	}
}

func (l *Loader) resolve(ctx context.Context, raw string) string {
	if l.media == nil {
		return raw
	}
	return l.media.Resolve(ctx, raw)
}

// PostComment is the command to add a comment to a review.
type PostComment struct {
	UserID  string
	Content string
	// Snapshot is the caller's current detail. It is never mutated.
	Snapshot Detail
}

// Post inserts the comment and returns a new snapshot with it first.
func (l *Loader) Post(ctx context.Context, cmd PostComment) (_ Detail, err error) {
	if cmd.UserID == "" {
		return Detail{}, ErrUnauthenticated
	}
	content, err := validate.CommentContent(cmd.Content)
	switch {
	case errors.Is(err, validate.ErrEmpty):
		return Detail{}, ErrEmptyComment
	case err != nil:
		return Detail{}, fmt.Errorf("%w: maximum is %d characters", ErrCommentTooLong, validate.MaxCommentLength)
	}

	ctx, endSpan := tracing.StartSpan(ctx, "detail.post_comment")
	defer func() { endSpan(err) }()

	reviewID := cmd.Snapshot.Review.ID
	stored, err := l.source.InsertComment(ctx, review.Comment{
		ReviewID: reviewID,
		UserID:   cmd.UserID,
		Content:  content,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "comment insert rejected",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
		return Detail{}, &WriteError{ReviewID: reviewID, Err: err}
	}

	out := cmd.Snapshot.WithReview(cmd.Snapshot.Review)
	out.Review.Comments = append([]review.Comment{stored}, out.Review.Comments...)
	out.Comments = append([]CommentView{l.commentView(ctx, stored)}, out.Comments...)
	return out, nil
}
