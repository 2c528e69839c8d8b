package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onnwee/placereviews/internal/auth"
	"github.com/onnwee/placereviews/internal/detail"
	"github.com/onnwee/placereviews/internal/engagement"
	"github.com/onnwee/placereviews/internal/geo"
	"github.com/onnwee/placereviews/internal/media"
	"github.com/onnwee/placereviews/internal/middleware"
	"github.com/onnwee/placereviews/internal/place"
	"github.com/onnwee/placereviews/internal/ranking"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/route"
	"github.com/onnwee/placereviews/internal/validate"
	"github.com/onnwee/placereviews/internal/vote"
)

const testSecret = "handler-test-secret-at-least-32-bytes!"

type fixture struct {
	store   *review.InMemoryStore
	handler http.Handler
	// review ids by place
	soda, mirador, noCoords string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, routes func(*Routes)) *fixture {
	t.Helper()
	store := review.NewInMemoryStore()
	review.Seed(store)

	logger := quietLogger()
	resolver := media.NewResolver(nil, media.ResolverConfig{Logger: logger})
	sessions := engagement.NewSessions(func() *engagement.Cache {
		return engagement.NewCache(store, resolver, engagement.Config{Logger: logger})
	}, logger, nil)
	router := route.NewResolver(nil, route.ResolverConfig{Logger: logger})
	loader := detail.NewLoader(store, resolver, logger)

	r := Routes{
		Health: NewHealthHandlers(HealthHandlersConfig{Logger: logger}),
		Search: NewSearchHandlers(SearchHandlersConfig{
			Sessions: sessions,
			Routes:   router,
			Fallback: geo.DefaultOrigin,
			Logger:   logger,
		}),
		Reviews: NewReviewHandlers(store, loader, vote.NewMachine(store, logger)),
		Route:   NewRouteHandlers(store, router, geo.DefaultOrigin),
		Places:  NewPlaceHandlers(place.NewDirectory(store, resolver, logger)),
		Ranks:   NewRankHandlers(ranking.DefaultTable()),
	}
	if routes != nil {
		routes(&r)
	}

	jwtSvc := auth.NewJWTService(testSecret)
	f := &fixture{
		store:   store,
		handler: middleware.Authenticate(jwtSvc, logger)(NewRouter(r)),
	}

	all, err := store.ListReviews(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, rv := range all {
		switch rv.Place.ID {
		case review.SeedPlaceSoda:
			f.soda = rv.ID
		case review.SeedPlaceMirador:
			f.mirador = rv.ID
		case review.SeedPlaceNoCoords:
			f.noCoords = rv.ID
		}
	}
	return f
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{auth.DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// do sends a request as userID ("" for anonymous).
func (f *fixture) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v, body: %s", v, err, w.Body.String())
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, w).Error.Code
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("match without position", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/search?q=TACOS", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decode[SearchResponse](t, w)
		if resp.Count != 1 || resp.SelectedReviewID != f.soda {
			t.Fatalf("count = %d, selected = %q", resp.Count, resp.SelectedReviewID)
		}
		if resp.Route != nil {
			t.Error("route computed without a position")
		}
		rank, ok := resp.AuthorRanks[review.SeedAuthorAna]
		if !ok || rank.Likes != 1 {
			t.Errorf("author rank = %+v", rank)
		}
	})

	t.Run("hashtag match with position", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/search?q=atardecer&lat=9.93&lng=-84.08", "", "")
		resp := decode[SearchResponse](t, w)
		if resp.SelectedReviewID != f.mirador {
			t.Fatalf("selected = %q", resp.SelectedReviewID)
		}
		if resp.Route == nil || len(resp.Route.Path) != 2 || !resp.Route.Approximate {
			t.Fatalf("route = %+v", resp.Route)
		}
		if got := resp.Route.Path[0]; got != (geo.Point{Lat: 9.93, Lng: -84.08}) {
			t.Errorf("origin = %+v", got)
		}
	})

	t.Run("unparseable position uses fallback origin", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/search?q=tacos&lat=north&lng=", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		resp := decode[SearchResponse](t, w)
		if resp.Route == nil || resp.Route.Path[0] != geo.DefaultOrigin {
			t.Errorf("route = %+v", resp.Route)
		}
	})

	t.Run("place without coordinates encodes an empty path", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/search?q=sin+mapa&lat=9.93&lng=-84.08", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"path":[]`) {
			t.Errorf("body = %s, want \"path\":[]", w.Body.String())
		}
		resp := decode[SearchResponse](t, w)
		if resp.Route == nil || !resp.Route.Empty() {
			t.Errorf("route = %+v", resp.Route)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		resp := decode[SearchResponse](t, f.do(t, http.MethodGet, "/search?q=", "", ""))
		if !resp.NoQuery || resp.Count != 0 || resp.Reviews == nil {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("no match", func(t *testing.T) {
		resp := decode[SearchResponse](t, f.do(t, http.MethodGet, "/search?q=pizza", "", ""))
		if resp.NoQuery || resp.Count != 0 || resp.SelectedReviewID != "" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("term too long", func(t *testing.T) {
		q := url.QueryEscape(strings.Repeat("a", validate.MaxSearchTermLength+1))
		w := f.do(t, http.MethodGet, "/search?q="+q, "", "")
		if w.Code != http.StatusBadRequest || errorCode(t, w) != ErrCodeValidation {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestSearchSession(t *testing.T) {
	f := newFixture(t, nil)

	// Populate the session, then add a review the cache has not seen.
	f.do(t, http.MethodGet, "/search?q=tacos", "", "")
	f.store.PutReview(review.Review{
		Content: "Más tacos, ahora al pastor.",
		Author:  review.Author{ID: review.SeedAuthorLuis},
		Place:   review.Place{ID: review.SeedPlaceSoda, Name: "Soda La Esquina"},
	})

	if resp := decode[SearchResponse](t, f.do(t, http.MethodGet, "/search?q=tacos", "", "")); resp.Count != 1 {
		t.Fatalf("cached count = %d, want 1", resp.Count)
	}

	if w := f.do(t, http.MethodPost, "/search/session/reload", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("reload status = %d", w.Code)
	}
	if resp := decode[SearchResponse](t, f.do(t, http.MethodGet, "/search?q=tacos", "", "")); resp.Count != 2 {
		t.Fatalf("reloaded count = %d, want 2", resp.Count)
	}

	if w := f.do(t, http.MethodDelete, "/search/session", "", ""); w.Code != http.StatusNoContent {
		t.Fatalf("end status = %d", w.Code)
	}
}

func TestGetReview(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name      string
		id        string
		user      string
		status    int
		wantState vote.State
	}{
		{"anonymous", f.soda, "", http.StatusOK, vote.StateNone},
		{"liked by caller", f.soda, review.SeedAuthorLuis, http.StatusOK, vote.StateLiked},
		{"not voted by caller", f.soda, review.SeedAuthorAna, http.StatusOK, vote.StateNone},
		{"unknown", "missing", "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/reviews/"+tt.id, tt.user, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			resp := decode[DetailResponse](t, w)
			if resp.VoteState != tt.wantState {
				t.Errorf("vote_state = %q, want %q", resp.VoteState, tt.wantState)
			}
			if resp.Likes != 1 || len(resp.Comments) != 1 || resp.AuthorInitial != "A" {
				t.Errorf("detail = %+v", resp.Detail)
			}
		})
	}

	t.Run("placeholders", func(t *testing.T) {
		resp := decode[DetailResponse](t, f.do(t, http.MethodGet, "/reviews/"+f.noCoords, "", ""))
		if resp.Body != review.NoContentPlaceholder || resp.CoverURL != detail.FallbackCoverURL {
			t.Errorf("body = %q, cover = %q", resp.Body, resp.CoverURL)
		}
	})
}

func TestVote(t *testing.T) {
	f := newFixture(t, nil)
	ana := review.SeedAuthorAna

	t.Run("anonymous", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/reviews/"+f.soda+"/vote", "", `{"type":"like"}`)
		if w.Code != http.StatusUnauthorized || errorCode(t, w) != ErrCodeAuthRequired {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	steps := []struct {
		reaction string
		current  vote.State
		likes    int
		dislikes int
	}{
		{"like", vote.StateLiked, 2, 0},
		{"dislike", vote.StateDisliked, 1, 1},
		{"dislike", vote.StateNone, 1, 0},
	}
	for _, s := range steps {
		w := f.do(t, http.MethodPost, "/reviews/"+f.soda+"/vote", ana, `{"type":"`+s.reaction+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", s.reaction, w.Code, w.Body.String())
		}
		resp := decode[VoteResponse](t, w)
		if resp.Current != s.current || resp.Likes != s.likes || resp.Dislikes != s.dislikes {
			t.Fatalf("%s: got %+v", s.reaction, resp)
		}
	}

	rejections := []struct {
		name   string
		id     string
		body   string
		status int
		code   string
	}{
		{"invalid reaction", f.soda, `{"type":"love"}`, http.StatusBadRequest, ErrCodeValidation},
		{"unknown field", f.soda, `{"reaction":"like"}`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown review", "missing", `{"type":"like"}`, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/reviews/"+tt.id+"/vote", ana, tt.body)
			if w.Code != tt.status || errorCode(t, w) != tt.code {
				t.Errorf("status = %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPostComment(t *testing.T) {
	f := newFixture(t, nil)
	target := "/reviews/" + f.mirador + "/comments"

	t.Run("anonymous", func(t *testing.T) {
		w := f.do(t, http.MethodPost, target, "", `{"content":"hola"}`)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("empty", func(t *testing.T) {
		w := f.do(t, http.MethodPost, target, review.SeedAuthorAna, `{"content":"   "}`)
		if w.Code != http.StatusBadRequest || errorCode(t, w) != ErrCodeValidation {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("posted first", func(t *testing.T) {
		w := f.do(t, http.MethodPost, target, review.SeedAuthorAna, `{"content":"  ¡Qué vista!  "}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decode[DetailResponse](t, w)
		if len(resp.Comments) != 1 || resp.Comments[0].Content != "¡Qué vista!" {
			t.Fatalf("comments = %+v", resp.Comments)
		}
		if resp.VoteState != vote.StateLiked {
			t.Errorf("vote_state = %q", resp.VoteState)
		}
	})
}

func TestRoute(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("missing review id", func(t *testing.T) {
		if w := f.do(t, http.MethodGet, "/route", "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("client position", func(t *testing.T) {
		resp := decode[RouteResponse](t, f.do(t, http.MethodGet, "/route?review_id="+f.soda+"&lat=9.9&lng=-84.1", "", ""))
		if resp.FallbackOrigin || resp.Dest == nil || len(resp.Path) != 2 || resp.DistanceKm == nil {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("fallback origin", func(t *testing.T) {
		resp := decode[RouteResponse](t, f.do(t, http.MethodGet, "/route?review_id="+f.soda+"&lat=95&lng=0", "", ""))
		if !resp.FallbackOrigin || resp.Origin != geo.DefaultOrigin {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("place without coordinates", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/route?review_id="+f.noCoords, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		resp := decode[RouteResponse](t, w)
		if resp.Dest != nil || len(resp.Path) != 0 || resp.DistanceKm != nil {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("unknown review", func(t *testing.T) {
		if w := f.do(t, http.MethodGet, "/route?review_id=missing", "", ""); w.Code != http.StatusNotFound {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestPlaces(t *testing.T) {
	f := newFixture(t, nil)

	resp := decode[PlacesResponse](t, f.do(t, http.MethodGet, "/places", "", ""))
	if resp.Count != 2 {
		t.Fatalf("places = %+v", resp.Places)
	}
	for _, m := range resp.Places {
		if m.ID == review.SeedPlaceNoCoords || m.Cell == "" {
			t.Errorf("marker = %+v", m)
		}
	}

	reviews := decode[PlaceReviewsResponse](t, f.do(t, http.MethodGet, "/places/"+review.SeedPlaceSoda+"/reviews", "", ""))
	if reviews.Count != 1 || reviews.Reviews[0].ID != f.soda {
		t.Errorf("reviews = %+v", reviews)
	}

	empty := decode[PlaceReviewsResponse](t, f.do(t, http.MethodGet, "/places/unknown/reviews", "", ""))
	if empty.Count != 0 || empty.Reviews == nil {
		t.Errorf("unknown place = %+v", empty)
	}
}

func TestRanks(t *testing.T) {
	f := newFixture(t, nil)
	table := ranking.DefaultTable()

	resp := decode[RankResponse](t, f.do(t, http.MethodGet, "/ranks?likes=7", "", ""))
	if resp.Rank == nil || *resp.Rank != table.RankFor(7) || len(resp.Tiers) != len(table.Tiers()) {
		t.Errorf("resp = %+v", resp)
	}

	if resp := decode[RankResponse](t, f.do(t, http.MethodGet, "/ranks", "", "")); resp.Rank != nil {
		t.Errorf("rank without likes = %+v", resp.Rank)
	}

	if w := f.do(t, http.MethodGet, "/ranks?likes=many", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRouter(t *testing.T) {
	store := middleware.NewInMemoryRateLimitStore()
	limit := middleware.RateLimiter(store, middleware.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, middleware.UserOrIPKey, nil)
	f := newFixture(t, func(r *Routes) {
		r.MutationLimit = limit
		r.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics")
		})
	})

	t.Run("unknown path", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/nowhere", "", "")
		if w.Code != http.StatusNotFound || errorCode(t, w) != ErrCodeNotFound {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("health and metrics", func(t *testing.T) {
		for _, p := range []string{"/health", "/ready", "/metrics"} {
			if w := f.do(t, http.MethodGet, p, "", ""); w.Code != http.StatusOK {
				t.Errorf("%s status = %d", p, w.Code)
			}
		}
	})

	t.Run("mutation limit", func(t *testing.T) {
		target := "/reviews/" + f.mirador + "/vote"
		if w := f.do(t, http.MethodPost, target, review.SeedAuthorLuis, `{"type":"like"}`); w.Code != http.StatusOK {
			t.Fatalf("first vote status = %d: %s", w.Code, w.Body.String())
		}
		w := f.do(t, http.MethodPost, target, review.SeedAuthorLuis, `{"type":"like"}`)
		if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
			t.Errorf("second vote status = %d", w.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/places", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", w.Code)
		}
	})
}
