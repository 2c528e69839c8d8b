package vote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/placereviews/internal/review"
)

// recordingStore wraps an in-memory store and records every remote call.
type recordingStore struct {
	*review.InMemoryStore
	mu       sync.Mutex
	calls    []string
	writeErr error
	readErr  error
	block    chan struct{}
}

func (s *recordingStore) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *recordingStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingStore) FindVote(ctx context.Context, reviewID, userID string) (*review.Vote, error) {
	s.record("find")
	if s.block != nil {
		<-s.block
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.InMemoryStore.FindVote(ctx, reviewID, userID)
}

func (s *recordingStore) InsertVote(ctx context.Context, v review.Vote) (review.Vote, error) {
	s.record("insert")
	if s.writeErr != nil {
		return review.Vote{}, s.writeErr
	}
	return s.InMemoryStore.InsertVote(ctx, v)
}

func (s *recordingStore) UpdateVoteType(ctx context.Context, id string, r review.Reaction) (review.Vote, error) {
	s.record("update")
	if s.writeErr != nil {
		return review.Vote{}, s.writeErr
	}
	return s.InMemoryStore.UpdateVoteType(ctx, id, r)
}

func (s *recordingStore) DeleteVote(ctx context.Context, id string) error {
	s.record("delete")
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.InMemoryStore.DeleteVote(ctx, id)
}

func newFixture(t *testing.T) (*recordingStore, *Machine, review.Review) {
	t.Helper()
	mem := review.NewInMemoryStore()
	id := mem.PutReview(review.Review{
		ID:      "r1",
		Content: "Great tacos",
		Author:  review.Author{ID: "author"},
		Place:   review.Place{ID: "p1", Name: "La Esquina"},
		Votes:   []review.Vote{{ID: "v-other", UserID: "other", Type: review.ReactionLike}},
	})
	snap, err := mem.GetReview(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	store := &recordingStore{InMemoryStore: mem}
	return store, NewMachine(store, slog.New(slog.NewTextHandler(io.Discard, nil))), *snap
}

func toggle(t *testing.T, m *Machine, snap review.Review, r review.Reaction) Outcome {
	t.Helper()
	out, err := m.Toggle(context.Background(), ToggleVote{Surface: "detail", UserID: "me", Reaction: r, Snapshot: snap})
	if err != nil {
		t.Fatalf("Toggle(%s): %v", r, err)
	}
	return out
}

func TestToggle_AnonymousMakesNoRemoteCall(t *testing.T) {
	store, m, snap := newFixture(t)
	before := snap.Clone()

	_, err := m.Toggle(context.Background(), ToggleVote{Surface: "detail", Reaction: review.ReactionLike, Snapshot: snap})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if calls := store.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %v, want none", calls)
	}
	if len(snap.Votes) != len(before.Votes) || snap.Votes[0] != before.Votes[0] {
		t.Error("local vote set changed")
	}
}

func TestToggle_InvalidReaction(t *testing.T) {
	store, m, snap := newFixture(t)
	_, err := m.Toggle(context.Background(), ToggleVote{UserID: "me", Reaction: "love", Snapshot: snap})
	if !errors.Is(err, ErrInvalidReaction) {
		t.Fatalf("err = %v, want ErrInvalidReaction", err)
	}
	if len(store.Calls()) != 0 {
		t.Error("invalid reaction reached the store")
	}
}

func TestToggle_FullCycle(t *testing.T) {
	store, m, snap := newFixture(t)

	liked := toggle(t, m, snap, review.ReactionLike)
	if liked.Previous != StateNone || liked.Current != StateLiked {
		t.Errorf("first like: %s -> %s", liked.Previous, liked.Current)
	}
	if liked.Snapshot.Likes() != 2 || StateOf(liked.Snapshot.Votes, "me") != StateLiked {
		t.Errorf("snapshot after like: likes=%d state=%s", liked.Snapshot.Likes(), StateOf(liked.Snapshot.Votes, "me"))
	}
	if snap.Likes() != 1 {
		t.Error("input snapshot was mutated")
	}

	disliked := toggle(t, m, liked.Snapshot, review.ReactionDislike)
	if disliked.Current != StateDisliked {
		t.Errorf("like -> dislike gave %s", disliked.Current)
	}
	if disliked.Snapshot.Likes() != 1 || disliked.Snapshot.Dislikes() != 1 {
		t.Errorf("after switch: likes=%d dislikes=%d", disliked.Snapshot.Likes(), disliked.Snapshot.Dislikes())
	}

	cleared := toggle(t, m, disliked.Snapshot, review.ReactionDislike)
	if cleared.Current != StateNone {
		t.Errorf("dislike twice gave %s", cleared.Current)
	}
	if cleared.Snapshot.Dislikes() != 0 || len(cleared.Snapshot.Votes) != 1 {
		t.Errorf("after clear: votes=%v", cleared.Snapshot.Votes)
	}

	want := []string{"find", "insert", "find", "update", "find", "delete"}
	got := store.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestToggle_ReconcilesFromRemoteNotLocal(t *testing.T) {
	store, m, snap := newFixture(t)

	// Remote already holds a like the local snapshot never saw.
	if _, err := store.InMemoryStore.InsertVote(context.Background(), review.Vote{ReviewID: snap.ID, UserID: "me", Type: review.ReactionLike}); err != nil {
		t.Fatal(err)
	}

	out := toggle(t, m, snap, review.ReactionLike)
	if out.Previous != StateLiked || out.Current != StateNone {
		t.Errorf("transition = %s -> %s, want liked -> none", out.Previous, out.Current)
	}
	if StateOf(out.Snapshot.Votes, "me") != StateNone {
		t.Error("snapshot still holds the user's vote")
	}
}

func TestToggle_WriteFailureLeavesSnapshot(t *testing.T) {
	store, m, snap := newFixture(t)
	store.writeErr = errors.New("permission denied")

	_, err := m.Toggle(context.Background(), ToggleVote{UserID: "me", Reaction: review.ReactionLike, Snapshot: snap})
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("err = %v, want *WriteError", err)
	}
	if werr.Op != WriteInsert {
		t.Errorf("op = %s, want insert", werr.Op)
	}
	if snap.Likes() != 1 {
		t.Error("snapshot changed after failed write")
	}
	if v, _ := store.InMemoryStore.FindVote(context.Background(), snap.ID, "me"); v != nil {
		t.Error("vote persisted despite failure")
	}
}

func TestToggle_ReadFailure(t *testing.T) {
	store, m, snap := newFixture(t)
	store.readErr = errors.New("timeout")

	_, err := m.Toggle(context.Background(), ToggleVote{UserID: "me", Reaction: review.ReactionLike, Snapshot: snap})
	var rerr *ReadError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	for _, c := range store.Calls() {
		if c != "find" {
			t.Errorf("unexpected write %s after failed read", c)
		}
	}
}

func TestToggle_BusyGatePerSurfaceAndReview(t *testing.T) {
	store, m, snap := newFixture(t)
	store.block = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := m.Toggle(context.Background(), ToggleVote{Surface: "detail", UserID: "me", Reaction: review.ReactionLike, Snapshot: snap})
		first <- err
	}()

	deadline := time.Now().Add(time.Second)
	for len(store.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first toggle never reached the store")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := m.Toggle(context.Background(), ToggleVote{Surface: "detail", UserID: "me", Reaction: review.ReactionDislike, Snapshot: snap})
	if !errors.Is(err, ErrVoteInFlight) {
		t.Errorf("second toggle err = %v, want ErrVoteInFlight", err)
	}

	other := snap.Clone()
	other.ID = "r2"
	if !m.acquire(busyKey{surface: "detail", reviewID: other.ID}) {
		t.Error("different review blocked by busy gate")
	}
	m.release(busyKey{surface: "detail", reviewID: other.ID})
	if !m.acquire(busyKey{surface: "search", reviewID: snap.ID}) {
		t.Error("different surface blocked by busy gate")
	}
	m.release(busyKey{surface: "search", reviewID: snap.ID})

	close(store.block)
	if err := <-first; err != nil {
		t.Fatalf("first toggle: %v", err)
	}

	if _, err := m.Toggle(context.Background(), ToggleVote{Surface: "detail", UserID: "me", Reaction: review.ReactionLike, Snapshot: snap}); err != nil {
		t.Errorf("toggle after release: %v", err)
	}
}

func TestReconcile(t *testing.T) {
	snap := review.Review{Votes: []review.Vote{
		{ID: "2", UserID: "me", Type: review.ReactionLike},
		{ID: "1", UserID: "u", Type: review.ReactionLike},
	}}

	updated := Reconcile(snap, "me", &review.Vote{ID: "2", UserID: "me", Type: review.ReactionDislike})
	if len(updated.Votes) != 2 || updated.Votes[1].Type != review.ReactionDislike {
		t.Errorf("votes = %v", updated.Votes)
	}
	removed := Reconcile(snap, "me", nil)
	if len(removed.Votes) != 1 || removed.Votes[0].UserID != "u" {
		t.Errorf("votes = %v", removed.Votes)
	}
	if snap.Votes[0].Type != review.ReactionLike || len(snap.Votes) != 2 {
		t.Error("input mutated")
	}
}
