// Package vote implements the per-review, per-user like/dislike state machine.
//
// Transitions:
//
//	none     --like-->    liked     insert
//	none     --dislike--> disliked  insert
//	liked    --like-->    none      delete
//	disliked --dislike--> none      delete
//	liked    --dislike--> disliked  update
//	disliked --like-->    liked     update
package vote

import (
	"github.com/onnwee/placereviews/internal/review"
)

// State is a user's current reaction to a review.
type State string

const (
	StateNone     State = "none"
	StateLiked    State = "liked"
	StateDisliked State = "disliked"
)

// Write is the single remote write a transition requires.
type Write int

const (
	WriteInsert Write = iota
	WriteUpdate
	WriteDelete
)

func (w Write) String() string {
	switch w {
	case WriteInsert:
		return "insert"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// StateFor maps a stored vote type to a state.
func StateFor(reaction review.Reaction) State {
	switch reaction {
	case review.ReactionLike:
		return StateLiked
	case review.ReactionDislike:
		return StateDisliked
	default:
		return StateNone
	}
}

// StateOf returns userID's state among votes. Anonymous users are always none.
func StateOf(votes []review.Vote, userID string) State {
	if userID == "" {
		return StateNone
	}
	for _, v := range votes {
		if v.UserID == userID {
			return StateFor(v.Type)
		}
	}
	return StateNone
}

// Next returns the state after applying reaction to from, and the write that
// realizes it. Re-selecting the current reaction clears it.
func Next(from State, reaction review.Reaction) (State, Write) {
	target := StateFor(reaction)
	switch {
	case from == StateNone:
		return target, WriteInsert
	case from == target:
		return StateNone, WriteDelete
	default:
		return target, WriteUpdate
	}
}
