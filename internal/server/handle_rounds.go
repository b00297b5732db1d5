package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panoplay/geoguess/internal/game"
	"github.com/panoplay/geoguess/internal/geo"
)

// StartRoundResponse is returned from POST /api/rounds. The location's true
// coordinate stays server-side until the round is terminal.
type StartRoundResponse struct {
	RoundID        string    `json:"roundId"`
	PanoURL        string    `json:"panoUrl"`
	ExpiresAt      time.Time `json:"expiresAt"`
	MovesRemaining int       `json:"movesRemaining"`
}

func handleStartRound(engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		now := time.Now()

		round, loc, err := engine.StartRound(r.Context(), id.UserID, now)
		if err != nil {
			writeGameError(w, err)
			return
		}

		user, err := engine.User(r.Context(), id.UserID, now)
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, StartRoundResponse{
			RoundID:        round.ID,
			PanoURL:        loc.PanoURL,
			ExpiresAt:      round.ExpiresAt,
			MovesRemaining: user.DailyMovesRemaining,
		})
	}
}

// GuessRequest is the request body for POST /api/rounds/{roundID}/guess.
type GuessRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GuessResponse reveals the outcome and, now that the round is terminal, the
// true coordinate.
type GuessResponse struct {
	Status        string     `json:"status"`
	DistanceError *float64   `json:"distanceError"`
	Score         float64    `json:"score"`
	ElapsedSec    float64    `json:"elapsedSec"`
	TrueLat       float64    `json:"trueLat"`
	TrueLng       float64    `json:"trueLng"`
	Stats         *UserStats `json:"stats,omitempty"`
}

// UserStats is the cumulative profile snapshot included in guess responses
// and GET /api/me.
type UserStats struct {
	GamesPlayed    int     `json:"gamesPlayed"`
	TotalScore     float64 `json:"totalScore"`
	AvgError       float64 `json:"avgError"`
	AvgTime        float64 `json:"avgTime"`
	MovesRemaining int     `json:"movesRemaining"`
}

func userStats(u game.User) *UserStats {
	return &UserStats{
		GamesPlayed:    u.GamesPlayed,
		TotalScore:     u.TotalScore,
		AvgError:       u.AvgError,
		AvgTime:        u.AvgTime,
		MovesRemaining: u.DailyMovesRemaining,
	}
}

func handleSubmitGuess(engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		roundID := chi.URLParam(r, "roundID")

		var req GuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := engine.SubmitGuess(r.Context(), roundID, id.UserID,
			geo.Coordinate{Lat: req.Lat, Lng: req.Lng}, time.Now())
		if err != nil {
			writeGameError(w, err)
			return
		}

		resp := GuessResponse{
			Status:        string(result.Round.Status),
			DistanceError: result.Round.DistanceError,
			Score:         result.Round.Score,
			ElapsedSec:    result.ElapsedSec,
			TrueLat:       result.TrueCoord.Lat,
			TrueLng:       result.TrueCoord.Lng,
		}
		if result.Round.Status == game.RoundCompleted {
			resp.Stats = userStats(result.User)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
