package vote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/tracing"
)

// ToggleVote is the command to react to a review.
type ToggleVote struct {
	// Surface identifies the UI surface issuing the command; the busy gate is
	// per (surface, review).
	Surface  string
	UserID   string
	Reaction review.Reaction
	// Snapshot is the caller's current copy of the review. It is never mutated.
	Snapshot review.Review
}

// Outcome is the result of a confirmed toggle.
type Outcome struct {
	Snapshot review.Review `json:"review"`
	Previous State         `json:"previous"`
	Current  State         `json:"current"`
}

// Machine applies vote toggles against the remote vote store.
type Machine struct {
	store  review.VoteStore
	logger *slog.Logger

	mu   sync.Mutex
	busy map[busyKey]struct{}
}

type busyKey struct {
	surface  string
	reviewID string
}

// NewMachine creates a Machine backed by store.
func NewMachine(store review.VoteStore, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:  store,
		logger: logger,
		busy:   make(map[busyKey]struct{}),
	}
}

// Toggle reads the user's remote vote, performs the one write the transition
// requires and returns a new snapshot whose vote set matches the write result.
func (m *Machine) Toggle(ctx context.Context, cmd ToggleVote) (_ Outcome, err error) {
	if cmd.UserID == "" {
		return Outcome{}, ErrUnauthenticated
	}
	if !cmd.Reaction.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidReaction, cmd.Reaction)
	}

	key := busyKey{surface: cmd.Surface, reviewID: cmd.Snapshot.ID}
	if !m.acquire(key) {
		return Outcome{}, ErrVoteInFlight
	}
	defer m.release(key)

	ctx, endSpan := tracing.StartSpan(ctx, "vote.toggle",
		attribute.String("review_id", cmd.Snapshot.ID),
		attribute.String("reaction", string(cmd.Reaction)),
	)
	defer func() { endSpan(err) }()

	existing, err := m.store.FindVote(ctx, cmd.Snapshot.ID, cmd.UserID)
	if err != nil {
		return Outcome{}, &ReadError{ReviewID: cmd.Snapshot.ID, Err: err}
	}

	from := StateNone
	if existing != nil {
		from = StateFor(existing.Type)
	}
	to, op := Next(from, cmd.Reaction)

	var stored *review.Vote
	switch op {
	case WriteInsert:
		v, werr := m.store.InsertVote(ctx, review.Vote{
			ReviewID: cmd.Snapshot.ID,
			UserID:   cmd.UserID,
			Type:     cmd.Reaction,
		})
		err = werr
		stored = &v
	case WriteUpdate:
		v, werr := m.store.UpdateVoteType(ctx, existing.ID, cmd.Reaction)
		err = werr
		stored = &v
	case WriteDelete:
		err = m.store.DeleteVote(ctx, existing.ID)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "vote write rejected",
			slog.String("review_id", cmd.Snapshot.ID),
			slog.String("op", op.String()),
			slog.String("error", err.Error()),
		)
		return Outcome{}, &WriteError{ReviewID: cmd.Snapshot.ID, Op: op, Err: err}
	}

	tracing.AddEvent(ctx, "vote.reconciled", attribute.String("state", string(to)))
	return Outcome{
		Snapshot: Reconcile(cmd.Snapshot, cmd.UserID, stored),
		Previous: from,
		Current:  to,
	}, nil
}

// Reconcile returns a copy of snapshot whose votes by userID are replaced by
// stored, or removed when stored is nil.
func Reconcile(snapshot review.Review, userID string, stored *review.Vote) review.Review {
	out := snapshot.Clone()
	votes := out.Votes[:0]
	for _, v := range out.Votes {
		if v.UserID != userID {
			votes = append(votes, v)
		}
	}
	if stored != nil {
		votes = append(votes, *stored)
	}
	sort.SliceStable(votes, func(i, j int) bool { return votes[i].ID < votes[j].ID })
	out.Votes = votes
	return out
}

func (m *Machine) acquire(key busyKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.busy[key]; ok {
		return false
	}
	m.busy[key] = struct{}{}
	return true
}

func (m *Machine) release(key busyKey) {
	m.mu.Lock()
	delete(m.busy, key)
	m.mu.Unlock()
}
