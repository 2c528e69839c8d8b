package api

import (
	"net/http"

	"github.com/onnwee/placereviews/internal/detail"
	"github.com/onnwee/placereviews/internal/middleware"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/vote"
)

// ReviewHandlers serves review detail, votes and comments.
type ReviewHandlers struct {
	reviews review.Getter
	details *detail.Loader
	votes   *vote.Machine
}

// NewReviewHandlers creates a new ReviewHandlers instance.
func NewReviewHandlers(reviews review.Getter, details *detail.Loader, votes *vote.Machine) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews, details: details, votes: votes}
}

// DetailResponse is a review page plus the caller's own reaction.
type DetailResponse struct {
	detail.Detail
	VoteState vote.State `json:"vote_state"`
}

// VoteRequest is the body of POST /reviews/{id}/vote.
type VoteRequest struct {
	Type review.Reaction `json:"type"`
}

// VoteResponse is the confirmed result of a vote toggle.
type VoteResponse struct {
	vote.Outcome
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// CommentRequest is the body of POST /reviews/{id}/comments.
type CommentRequest struct {
	Content string `json:"content"`
}

// GetReview handles GET /reviews/{id}.
func (h *ReviewHandlers) GetReview(w http.ResponseWriter, r *http.Request) {
	d, err := h.details.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, DetailResponse{
		Detail:    d,
		VoteState: vote.StateOf(d.Review.Votes, middleware.GetUserID(r.Context())),
	})
}

// Vote handles POST /reviews/{id}/vote.
func (h *ReviewHandlers) Vote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeDomainError(w, r, vote.ErrUnauthenticated)
		return
	}

	var req VoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snapshot, err := h.reviews.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out, err := h.votes.Toggle(r.Context(), vote.ToggleVote{
		Surface:  middleware.SessionID(r),
		UserID:   userID,
		Reaction: req.Type,
		Snapshot: *snapshot,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, VoteResponse{
		Outcome:  out,
		Likes:    out.Snapshot.Likes(),
		Dislikes: out.Snapshot.Dislikes(),
	})
}

// PostComment handles POST /reviews/{id}/comments.
func (h *ReviewHandlers) PostComment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeDomainError(w, r, detail.ErrUnauthenticated)
		return
	}

	var req CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snapshot, err := h.details.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	d, err := h.details.Post(r.Context(), detail.PostComment{
		UserID:   userID,
		Content:  req.Content,
		Snapshot: snapshot,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, DetailResponse{
		Detail:    d,
		VoteState: vote.StateOf(d.Review.Votes, userID),
	})
}
