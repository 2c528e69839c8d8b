// Package review provides the place review data model and the boundary to the
// relational data service that stores reviews, votes and comments.
package review

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/placereviews/internal/geo"
)

// NoContentPlaceholder is rendered in place of an empty review body.
const NoContentPlaceholder = "Sin descripción"

// Reaction is the type of a vote.
type Reaction string

// Supported reactions.
const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Valid reports whether r is a known reaction.
func (r Reaction) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// Author is the profile projection attached to reviews and comments.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"full_name,omitempty"`
	Handle      string `json:"username,omitempty"` // stored with a leading '@'
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Name returns the label shown next to the author's content.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if a.Handle != "" {
		return a.Handle
	}
	return "Usuario"
}

// Initial returns the fallback avatar letter. The handle's leading '@'
// markers are stripped before use.
func (a Author) Initial() string {
	seed := a.DisplayName
	if seed == "" {
		seed = a.Handle
	}
	seed = strings.TrimLeft(seed, "@")
	if seed == "" {
		seed = "U"
	}
	r, _ := utf8.DecodeRuneInString(seed)
	return string(unicode.ToUpper(r))
}

// Place is a reviewed location. Coordinates are optional; places without
// finite coordinates are excluded from geospatial views.
type Place struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Point returns the place coordinates when both are present and finite.
func (p Place) Point() (geo.Point, bool) {
	return geo.FromNullable(p.Latitude, p.Longitude)
}

// Vote is a single reaction of a user to a review.
// At most one vote exists per (review, user); the vote engine enforces it.
type Vote struct {
	ID       string   `json:"id"`
	ReviewID string   `json:"review_id"`
	UserID   string   `json:"user_id"`
	Type     Reaction `json:"type"`
}

// Comment is an immutable remark attached to a review.
type Comment struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
}

// Review is a rated write-up of a place.
type Review struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
	Place     Place     `json:"place"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Images    []string  `json:"images,omitempty"` // first entry is the cover image
	Votes     []Vote    `json:"votes,omitempty"`
	Comments  []Comment `json:"comments,omitempty"` // most recent first
}

// Body returns the review content or the placeholder when empty.
func (r Review) Body() string {
	if strings.TrimSpace(r.Content) == "" {
		return NoContentPlaceholder
	}
	return r.Content
}

// Cover returns the raw cover image reference, or "" when the review has no images.
func (r Review) Cover() string {
	if len(r.Images) == 0 {
		return ""
	}
	return r.Images[0]
}

// Likes returns the number of like votes.
func (r Review) Likes() int {
	return CountReactions(r.Votes, ReactionLike)
}

// Dislikes returns the number of dislike votes.
func (r Review) Dislikes() int {
	return CountReactions(r.Votes, ReactionDislike)
}

// Clone returns a deep copy so snapshots can be replaced instead of mutated.
func (r Review) Clone() Review {
	out := r
	out.Place.Latitude = cloneFloat(r.Place.Latitude)
	out.Place.Longitude = cloneFloat(r.Place.Longitude)
	out.Hashtags = append([]string(nil), r.Hashtags...)
	out.Images = append([]string(nil), r.Images...)
	out.Votes = append([]Vote(nil), r.Votes...)
	out.Comments = append([]Comment(nil), r.Comments...)
	return out
}

// CountReactions counts votes of the given type.
func CountReactions(votes []Vote, reaction Reaction) int {
	n := 0
	for _, v := range votes {
		if v.Type == reaction {
			n++
		}
	}
	return n
}

// ClampRating bounds a rating to [0, 5] and rounds it to one decimal.
func ClampRating(rating float64) float64 {
	if rating < 0 || math.IsNaN(rating) {
		return 0
	}
	if rating > 5 {
		return 5
	}
	return math.Round(rating*10) / 10
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
