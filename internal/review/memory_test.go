package review

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryStore_ReviewsNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.PutReview(Review{ID: "a", CreatedAt: base, Author: Author{ID: "u"}, Place: Place{ID: "p", Name: "P"}})
	s.PutReview(Review{ID: "b", CreatedAt: base.Add(time.Hour), Author: Author{ID: "u"}, Place: Place{ID: "p"}})

	got, err := s.ListReviews(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("order = %v", got)
	}
	if got[0].Place.Name != "P" {
		t.Errorf("place projection missing: %+v", got[0].Place)
	}
	if got[0].Comments != nil {
		t.Error("list must not include comments")
	}
}

func TestInMemoryStore_GetReview(t *testing.T) {
	s := NewInMemoryStore()
	s.PutProfile(Author{ID: "u2", DisplayName: "Dos"})
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	id := s.PutReview(Review{
		Author: Author{ID: "u"},
		Votes:  []Vote{{UserID: "u2", Type: ReactionLike}},
		Comments: []Comment{
			{UserID: "u2", Content: "first", CreatedAt: base},
			{UserID: "u2", Content: "second", CreatedAt: base.Add(time.Minute)},
		},
	})

	r, err := s.GetReview(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Votes) != 1 || r.Votes[0].ReviewID != id {
		t.Errorf("votes = %+v", r.Votes)
	}
	if len(r.Comments) != 2 || r.Comments[0].Content != "second" {
		t.Errorf("comments not newest first: %+v", r.Comments)
	}
	if r.Comments[0].Author.DisplayName != "Dos" {
		t.Errorf("comment author projection = %+v", r.Comments[0].Author)
	}

	if _, err := s.GetReview(context.Background(), "missing"); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("err = %v, want ErrReviewNotFound", err)
	}
}

func TestInMemoryStore_VoteLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id := s.PutReview(Review{Author: Author{ID: "u"}})

	if v, err := s.FindVote(ctx, id, "me"); v != nil || err != nil {
		t.Fatalf("FindVote on empty = %v, %v", v, err)
	}

	v, err := s.InsertVote(ctx, Vote{ReviewID: id, UserID: "me", Type: ReactionLike})
	if err != nil || v.ID == "" {
		t.Fatalf("InsertVote = %+v, %v", v, err)
	}
	found, _ := s.FindVote(ctx, id, "me")
	if found == nil || found.ID != v.ID {
		t.Fatalf("FindVote = %+v", found)
	}

	updated, err := s.UpdateVoteType(ctx, v.ID, ReactionDislike)
	if err != nil || updated.Type != ReactionDislike {
		t.Fatalf("UpdateVoteType = %+v, %v", updated, err)
	}
	if err := s.DeleteVote(ctx, v.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteVote(ctx, v.ID); !errors.Is(err, ErrVoteNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if _, err := s.UpdateVoteType(ctx, v.ID, ReactionLike); !errors.Is(err, ErrVoteNotFound) {
		t.Errorf("update deleted err = %v", err)
	}
	if _, err := s.InsertVote(ctx, Vote{ReviewID: "missing", UserID: "me", Type: ReactionLike}); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("insert on missing review err = %v", err)
	}
}

func TestInMemoryStore_InsertComment(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Date(2026, 4, 4, 4, 4, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.PutProfile(Author{ID: "me", Handle: "@yo"})
	id := s.PutReview(Review{Author: Author{ID: "u"}})

	c, err := s.InsertComment(context.Background(), Comment{ReviewID: id, UserID: "me", Content: "hola"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" || !c.CreatedAt.Equal(now) || c.Author.Handle != "@yo" {
		t.Errorf("comment = %+v", c)
	}
	if _, err := s.InsertComment(context.Background(), Comment{ReviewID: "missing"}); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("err = %v, want ErrReviewNotFound", err)
	}
}

func TestInMemoryStore_Places(t *testing.T) {
	s := NewInMemoryStore()
	s.PutPlace(Place{ID: "b", Name: "Bravo"})
	s.PutPlace(Place{ID: "a", Name: "Alfa"})
	s.PutReview(Review{Author: Author{ID: "u"}, Place: Place{ID: "b"}})

	places, _ := s.ListPlaces(context.Background())
	if len(places) != 2 || places[0].Name != "Alfa" {
		t.Errorf("places = %+v", places)
	}
	ids, _ := s.ReviewedPlaceIDs(context.Background())
	if _, ok := ids["b"]; !ok || len(ids) != 1 {
		t.Errorf("reviewed ids = %v", ids)
	}
	byPlace, _ := s.ListReviewsByPlace(context.Background(), "a")
	if len(byPlace) != 0 {
		t.Errorf("reviews for unreviewed place = %v", byPlace)
	}
}

func TestSeed(t *testing.T) {
	s := NewInMemoryStore()
	Seed(s)

	reviews, err := s.ListReviews(context.Background())
	if err != nil || len(reviews) != 3 {
		t.Fatalf("ListReviews() = %d reviews, %v", len(reviews), err)
	}
	ids, err := s.ReviewedPlaceIDs(context.Background())
	if err != nil || len(ids) != 3 {
		t.Errorf("ReviewedPlaceIDs() = %v, %v", ids, err)
	}
	if reviews[len(reviews)-1].Likes() != 1 {
		t.Errorf("oldest seeded review likes = %d, want 1", reviews[len(reviews)-1].Likes())
	}
}
