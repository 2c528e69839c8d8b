package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq" // pq.Array for text[] aggregation, pq.Error for constraint codes

	"github.com/onnwee/placereviews/internal/tracing"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgForeignKeyViolation  = "23503"
	pgInvalidTextRepresent = "22P02"
)

// reviewColumns selects a review with its author, place, images and hashtags.
// Image and hashtag order follows their stored position.
const reviewColumns = `
	r.id, r.content, r.rating, r.created_at,
	p.id, p.username, p.full_name, p.avatar_url,
	pl.id, pl.name, pl.address, pl.latitude, pl.longitude,
	ARRAY(SELECT ri.image_url FROM review_images ri WHERE ri.review_id = r.id ORDER BY ri.position, ri.id),
	ARRAY(SELECT h.tag FROM review_hashtags rh JOIN hashtags h ON h.id = rh.hashtag_id
	      WHERE rh.review_id = r.id ORDER BY rh.position, h.tag)
FROM reviews r
LEFT JOIN profiles p ON p.id = r.user_id
LEFT JOIN places pl ON pl.id = r.place_id`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// ListReviews returns every review newest first with its votes.
func (s *PostgresStore) ListReviews(ctx context.Context) (reviews []Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+reviewColumns+` ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	reviews, err = scanReviews(rows)
	if err != nil {
		return nil, err
	}

	votes, err := s.votesWhere(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].Votes = votes[reviews[i].ID]
	}
	return reviews, nil
}

// GetReview returns one review with votes and comments.
func (s *PostgresStore) GetReview(ctx context.Context, id string) (result *Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+reviewColumns+` WHERE r.id = $1`, id)
	if err != nil {
		if isInvalidID(err) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to query review: %w", err)
	}
	reviews, err := scanReviews(rows)
	if err != nil {
		if isInvalidID(err) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, ErrReviewNotFound
	}
	r := reviews[0]

	votes, err := s.votesWhere(ctx, "WHERE review_id = $1", []any{id})
	if err != nil {
		return nil, err
	}
	r.Votes = votes[id]

	r.Comments, err = s.comments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListPlaces returns every place ordered by name.
func (s *PostgresStore) ListPlaces(ctx context.Context) (places []Place, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, address, latitude, longitude FROM places ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        Place
			address  sql.NullString
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &p.Name, &address, &lat, &lng); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		p.Address = address.String
		p.Latitude = nullableFloat(lat)
		p.Longitude = nullableFloat(lng)
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate places: %w", err)
	}
	return places, nil
}

// ReviewedPlaceIDs returns the set of places referenced by reviews.
func (s *PostgresStore) ReviewedPlaceIDs(ctx context.Context) (ids map[string]struct{}, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT place_id FROM reviews WHERE place_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviewed places: %w", err)
	}
	defer rows.Close()

	ids = make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan place id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviewed places: %w", err)
	}
	return ids, nil
}

// ListReviewsByPlace returns one place's reviews newest first.
func (s *PostgresStore) ListReviewsByPlace(ctx context.Context, placeID string) (reviews []Review, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` WHERE r.place_id = $1 ORDER BY r.created_at DESC, r.id`, placeID)
	if err != nil {
		if isInvalidID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query place reviews: %w", err)
	}
	return scanReviews(rows)
}

// FindVote returns the user's vote on a review, or nil.
func (s *PostgresStore) FindVote(ctx context.Context, reviewID, userID string) (vote *Vote, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var v Vote
	err = s.db.QueryRowContext(ctx,
		`SELECT id, review_id, user_id, type FROM votes WHERE review_id = $1 AND user_id = $2 ORDER BY id LIMIT 1`,
		reviewID, userID,
	).Scan(&v.ID, &v.ReviewID, &v.UserID, &v.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isInvalidID(err) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}
	return &v, nil
}

// InsertVote stores a new vote.
func (s *PostgresStore) InsertVote(ctx context.Context, v Vote) (stored Vote, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO votes (review_id, user_id, type) VALUES ($1, $2, $3)
		 RETURNING id, review_id, user_id, type`,
		v.ReviewID, v.UserID, string(v.Type),
	).Scan(&stored.ID, &stored.ReviewID, &stored.UserID, &stored.Type)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidID(err) {
			return Vote{}, ErrReviewNotFound
		}
		return Vote{}, fmt.Errorf("failed to insert vote: %w", err)
	}
	return stored, nil
}

// UpdateVoteType changes the reaction of a vote.
func (s *PostgresStore) UpdateVoteType(ctx context.Context, voteID string, reaction Reaction) (stored Vote, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx,
		`UPDATE votes SET type = $2 WHERE id = $1 RETURNING id, review_id, user_id, type`,
		voteID, string(reaction),
	).Scan(&stored.ID, &stored.ReviewID, &stored.UserID, &stored.Type)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return Vote{}, ErrVoteNotFound
	}
	if err != nil {
		return Vote{}, fmt.Errorf("failed to update vote: %w", err)
	}
	return stored, nil
}

// DeleteVote removes a vote.
func (s *PostgresStore) DeleteVote(ctx context.Context, voteID string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, voteID)
	if err != nil {
		if isInvalidID(err) {
			return ErrVoteNotFound
		}
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrVoteNotFound
	}
	return nil
}

// InsertComment stores a comment and returns it with its author projection.
func (s *PostgresStore) InsertComment(ctx context.Context, c Comment) (stored Comment, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "review_comments", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	var username, fullName, avatar sql.NullString
	err = s.db.QueryRowContext(ctx, `
		WITH ins AS (
			INSERT INTO review_comments (review_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, review_id, user_id, content, created_at
		)
		SELECT ins.id, ins.review_id, ins.user_id, ins.content, ins.created_at,
		       p.username, p.full_name, p.avatar_url
		FROM ins LEFT JOIN profiles p ON p.id = ins.user_id`,
		c.ReviewID, c.UserID, c.Content,
	).Scan(&stored.ID, &stored.ReviewID, &stored.UserID, &stored.Content, &stored.CreatedAt,
		&username, &fullName, &avatar)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidID(err) {
			return Comment{}, ErrReviewNotFound
		}
		return Comment{}, fmt.Errorf("failed to insert comment: %w", err)
	}
	stored.Author = Author{
		ID:          stored.UserID,
		Handle:      username.String,
		DisplayName: fullName.String,
		AvatarURL:   avatar.String,
	}
	return stored, nil
}

// votesWhere loads votes grouped by review ID.
func (s *PostgresStore) votesWhere(ctx context.Context, where string, args []any) (map[string][]Vote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, review_id, user_id, type FROM votes `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	byReview := make(map[string][]Vote)
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.ReviewID, &v.UserID, &v.Type); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		byReview[v.ReviewID] = append(byReview[v.ReviewID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}
	return byReview, nil
}

func (s *PostgresStore) comments(ctx context.Context, reviewID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.review_id, c.user_id, c.content, c.created_at,
		       p.username, p.full_name, p.avatar_url
		FROM review_comments c
		LEFT JOIN profiles p ON p.id = c.user_id
		WHERE c.review_id = $1
		ORDER BY c.created_at DESC, c.id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var (
			c                          Comment
			username, fullName, avatar sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.ReviewID, &c.UserID, &c.Content, &c.CreatedAt,
			&username, &fullName, &avatar); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Author = Author{
			ID:          c.UserID,
			Handle:      username.String,
			DisplayName: fullName.String,
			AvatarURL:   avatar.String,
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return out, nil
}

// scanReviews reads rows produced by reviewColumns and closes them.
func scanReviews(rows *sql.Rows) ([]Review, error) {
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var (
			r                                    Review
			createdAt                            time.Time
			authorID, username, fullName, avatar sql.NullString
			placeID, placeName, address          sql.NullString
			lat, lng                             sql.NullFloat64
			images, tags                         []string
		)
		if err := rows.Scan(
			&r.ID, &r.Content, &r.Rating, &createdAt,
			&authorID, &username, &fullName, &avatar,
			&placeID, &placeName, &address, &lat, &lng,
			pq.Array(&images), pq.Array(&tags),
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		r.CreatedAt = createdAt
		r.Rating = ClampRating(r.Rating)
		r.Author = Author{
			ID:          authorID.String,
			Handle:      username.String,
			DisplayName: fullName.String,
			AvatarURL:   avatar.String,
		}
		r.Place = Place{
			ID:        placeID.String,
			Name:      placeName.String,
			Address:   address.String,
			Latitude:  nullableFloat(lat),
			Longitude: nullableFloat(lng),
		}
		r.Images = images
		r.Hashtags = tags
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return out, nil
}

func nullableFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation
}

// isInvalidID reports a malformed UUID parameter, which callers treat as "not found".
func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgInvalidTextRepresent
}
