package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used in development mode and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	places   map[string]Place
	profiles map[string]Author
	reviews  map[string]*Review
	votes    map[string]Vote // vote ID -> vote
	comments map[string][]Comment
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		places:   make(map[string]Place),
		profiles: make(map[string]Author),
		reviews:  make(map[string]*Review),
		votes:    make(map[string]Vote),
		comments: make(map[string][]Comment),
		now:      time.Now,
	}
}

// PutPlace stores or replaces a place.
func (s *InMemoryStore) PutPlace(p Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places[p.ID] = p
}

// PutProfile stores or replaces an author profile.
func (s *InMemoryStore) PutProfile(a Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[a.ID] = a
}

// PutReview stores a review. Votes and comments on the given value are
// imported into the vote and comment tables; missing IDs are generated.
func (s *InMemoryStore) PutReview(r Review) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if r.Place.ID != "" {
		if _, ok := s.places[r.Place.ID]; !ok {
			s.places[r.Place.ID] = r.Place
		}
	}
	if r.Author.ID != "" {
		if _, ok := s.profiles[r.Author.ID]; !ok {
			s.profiles[r.Author.ID] = r.Author
		}
	}

	for _, v := range r.Votes {
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.ReviewID = r.ID
		s.votes[v.ID] = v
	}
	for _, c := range r.Comments {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.ReviewID = r.ID
		s.comments[r.ID] = append(s.comments[r.ID], c)
	}

	stored := r.Clone()
	stored.Votes = nil
	stored.Comments = nil
	s.reviews[r.ID] = &stored
	return r.ID
}

// ListReviews returns all reviews newest first.
func (s *InMemoryStore) ListReviews(ctx context.Context) ([]Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		out = append(out, s.assemble(r, false))
	}
	sortNewestFirst(out)
	return out, nil
}

// GetReview returns a review with votes and comments.
func (s *InMemoryStore) GetReview(ctx context.Context, id string) (*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	full := s.assemble(r, true)
	return &full, nil
}

// ListPlaces returns all places ordered by name.
func (s *InMemoryStore) ListPlaces(ctx context.Context) ([]Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReviewedPlaceIDs returns the IDs of places with at least one review.
func (s *InMemoryStore) ReviewedPlaceIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	for _, r := range s.reviews {
		if r.Place.ID != "" {
			ids[r.Place.ID] = struct{}{}
		}
	}
	return ids, nil
}

// ListReviewsByPlace returns the reviews of one place newest first.
func (s *InMemoryStore) ListReviewsByPlace(ctx context.Context, placeID string) ([]Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Review
	for _, r := range s.reviews {
		if r.Place.ID == placeID {
			out = append(out, s.assemble(r, false))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// FindVote returns the user's vote on a review, or nil.
func (s *InMemoryStore) FindVote(ctx context.Context, reviewID, userID string) (*Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.votes {
		if v.ReviewID == reviewID && v.UserID == userID {
			found := v
			return &found, nil
		}
	}
	return nil, nil
}

// InsertVote stores a new vote.
func (s *InMemoryStore) InsertVote(ctx context.Context, v Vote) (Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[v.ReviewID]; !ok {
		return Vote{}, ErrReviewNotFound
	}
	v.ID = uuid.New().String()
	s.votes[v.ID] = v
	return v, nil
}

// UpdateVoteType changes a vote's reaction.
func (s *InMemoryStore) UpdateVoteType(ctx context.Context, voteID string, reaction Reaction) (Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[voteID]
	if !ok {
		return Vote{}, ErrVoteNotFound
	}
	v.Type = reaction
	s.votes[voteID] = v
	return v, nil
}

// DeleteVote removes a vote.
func (s *InMemoryStore) DeleteVote(ctx context.Context, voteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.votes[voteID]; !ok {
		return ErrVoteNotFound
	}
	delete(s.votes, voteID)
	return nil
}

// InsertComment stores a comment and attaches the author's profile projection.
func (s *InMemoryStore) InsertComment(ctx context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[c.ReviewID]; !ok {
		return Comment{}, ErrReviewNotFound
	}
	c.ID = uuid.New().String()
	c.CreatedAt = s.now()
	if author, ok := s.profiles[c.UserID]; ok {
		c.Author = author
	} else {
		c.Author = Author{ID: c.UserID}
	}
	s.comments[c.ReviewID] = append(s.comments[c.ReviewID], c)
	return c, nil
}

// assemble joins a stored review with its votes, the current author
// profile, and optionally its comments. Caller must hold the read lock.
func (s *InMemoryStore) assemble(r *Review, withComments bool) Review {
	out := r.Clone()
	if author, ok := s.profiles[r.Author.ID]; ok {
		out.Author = author
	}
	if place, ok := s.places[r.Place.ID]; ok {
		out.Place = place
	}

	out.Votes = nil
	for _, v := range s.votes {
		if v.ReviewID == r.ID {
			out.Votes = append(out.Votes, v)
		}
	}
	sort.Slice(out.Votes, func(i, j int) bool { return out.Votes[i].ID < out.Votes[j].ID })

	out.Comments = nil
	if withComments {
		comments := append([]Comment(nil), s.comments[r.ID]...)
		for i := range comments {
			if author, ok := s.profiles[comments[i].UserID]; ok {
				comments[i].Author = author
			}
		}
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt.After(comments[j].CreatedAt)
		})
		out.Comments = comments
	}
	return out
}

func sortNewestFirst(reviews []Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].ID < reviews[j].ID
		}
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
}
