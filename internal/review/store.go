package review

import (
	"context"
	"errors"
)

// Common errors for review data operations.
var (
	ErrReviewNotFound = errors.New("review not found")
	ErrVoteNotFound   = errors.New("vote not found")
	ErrPlaceNotFound  = errors.New("place not found")
)

// Lister performs the bulk read used by the engagement cache.
type Lister interface {
	// ListReviews returns every review, newest first, with place, author,
	// hashtags, images and votes. Comments are not loaded.
	ListReviews(ctx context.Context) ([]Review, error)
}

// Getter loads a single review in full.
type Getter interface {
	// GetReview returns the review with votes and comments (newest first).
	// Returns ErrReviewNotFound when no such review exists.
	GetReview(ctx context.Context, id string) (*Review, error)
}

// PlaceLister backs the map view.
type PlaceLister interface {
	// ListPlaces returns every place, including ones without coordinates.
	ListPlaces(ctx context.Context) ([]Place, error)

	// ReviewedPlaceIDs returns the set of place IDs referenced by at least one review.
	ReviewedPlaceIDs(ctx context.Context) (map[string]struct{}, error)

	// ListReviewsByPlace returns a place's reviews newest first with their authors.
	ListReviewsByPlace(ctx context.Context, placeID string) ([]Review, error)
}

// VoteStore provides read-modify-write access to votes.
// Every write returns the row exactly as persisted.
type VoteStore interface {
	// FindVote returns the user's vote on a review, or nil when none exists.
	FindVote(ctx context.Context, reviewID, userID string) (*Vote, error)

	// InsertVote stores a new vote and returns it with its assigned ID.
	InsertVote(ctx context.Context, v Vote) (Vote, error)

	// UpdateVoteType changes the reaction of an existing vote.
	UpdateVoteType(ctx context.Context, voteID string, reaction Reaction) (Vote, error)

	// DeleteVote removes a vote. Returns ErrVoteNotFound when absent.
	DeleteVote(ctx context.Context, voteID string) error
}

// CommentStore inserts comments.
type CommentStore interface {
	// InsertComment stores a comment and returns it with ID, timestamp and author projection.
	InsertComment(ctx context.Context, c Comment) (Comment, error)
}

// Store is the full relational data service surface.
type Store interface {
	Lister
	Getter
	PlaceLister
	VoteStore
	CommentStore
}
