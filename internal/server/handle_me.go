package server

import (
	"net/http"
	"time"

	"github.com/panoplay/geoguess/internal/game"
)

// MeResponse is the response for GET /api/me.
type MeResponse struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Stats        UserStats `json:"stats"`
	QuotaResetAt time.Time `json:"quotaResetAt"`
}

func handleMe(engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)

		user, err := engine.User(r.Context(), id.UserID, time.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MeResponse{
			ID:           user.ID,
			DisplayName:  user.DisplayName,
			Stats:        *userStats(user),
			QuotaResetAt: user.QuotaResetAt,
		})
	}
}
