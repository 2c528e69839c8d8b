package api

import (
	"net/http"
	"strconv"

	"github.com/onnwee/placereviews/internal/ranking"
)

// RankHandlers exposes the reputation ladder.
type RankHandlers struct {
	table *ranking.Table
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(table *ranking.Table) *RankHandlers {
	return &RankHandlers{table: table}
}

// RankResponse is the body of GET /ranks.
type RankResponse struct {
	Tiers []ranking.Tier `json:"tiers"`
	Rank  *ranking.Rank  `json:"rank,omitempty"`
}

// Ranks handles GET /ranks and GET /ranks?likes=N.
func (h *RankHandlers) Ranks(w http.ResponseWriter, r *http.Request) {
	resp := RankResponse{Tiers: h.table.Tiers()}

	if raw := r.URL.Query().Get("likes"); raw != "" {
		likes, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "likes must be an integer")
			return
		}
		rank := h.table.RankFor(likes)
		resp.Rank = &rank
	}

	writeJSON(w, r, http.StatusOK, resp)
}
