package server

import (
	"net/http"
	"strconv"

	"github.com/panoplay/geoguess/internal/game"
)

// LeaderboardResponse is the response for GET /api/leaderboard.
type LeaderboardResponse struct {
	Sort    string       `json:"sort"`
	Page    int          `json:"page"`
	Entries []game.Entry `json:"entries"`
}

func handleLeaderboard(lb *game.Leaderboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := game.ParseSortKey(r.URL.Query().Get("sort"))
		if err != nil {
			writeGameError(w, err)
			return
		}

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			page, err = strconv.Atoi(raw)
			if err != nil {
				writeGameError(w, game.Validation("page", "must be an integer"))
				return
			}
		}

		entries, err := lb.Page(r.Context(), key, page)
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, LeaderboardResponse{
			Sort:    string(key),
			Page:    page,
			Entries: entries,
		})
	}
}
