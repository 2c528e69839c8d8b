package api

import (
	"net/http"

	"github.com/onnwee/placereviews/internal/place"
)

// PlaceHandlers serves the map view.
type PlaceHandlers struct {
	directory *place.Directory
}

// NewPlaceHandlers creates a new PlaceHandlers instance.
func NewPlaceHandlers(directory *place.Directory) *PlaceHandlers {
	return &PlaceHandlers{directory: directory}
}

// PlacesResponse is the body of GET /places.
type PlacesResponse struct {
	Places []place.Marker `json:"places"`
	Count  int            `json:"count"`
}

// PlaceReviewsResponse is the body of GET /places/{id}/reviews.
type PlaceReviewsResponse struct {
	PlaceID string             `json:"place_id"`
	Reviews []place.ReviewView `json:"reviews"`
	Count   int                `json:"count"`
}

// ListPlaces handles GET /places.
func (h *PlaceHandlers) ListPlaces(w http.ResponseWriter, r *http.Request) {
	markers, err := h.directory.ReviewedPlaces(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if markers == nil {
		markers = []place.Marker{}
	}
	writeJSON(w, r, http.StatusOK, PlacesResponse{Places: markers, Count: len(markers)})
}

// PlaceReviews handles GET /places/{id}/reviews.
func (h *PlaceHandlers) PlaceReviews(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	views, err := h.directory.PlaceReviews(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if views == nil {
		views = []place.ReviewView{}
	}
	writeJSON(w, r, http.StatusOK, PlaceReviewsResponse{PlaceID: id, Reviews: views, Count: len(views)})
}
