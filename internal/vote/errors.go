package vote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no acting user is present.
	ErrUnauthenticated = errors.New("sign in to react to reviews")
	// ErrInvalidReaction is returned for reactions other than like and dislike.
	ErrInvalidReaction = errors.New("invalid reaction")
	// ErrVoteInFlight is returned while another vote on the same review from
	// the same surface is pending.
	ErrVoteInFlight = errors.New("a vote on this review is already in progress")
)

// ReadError reports a failed read of the user's current vote.
type ReadError struct {
	ReviewID string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read vote on review %s: %v", e.ReviewID, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a rejected vote write. The caller's snapshot is untouched.
type WriteError struct {
	ReviewID string
	Op       Write
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s vote on review %s: %v", e.Op, e.ReviewID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
