package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/panoplay/geoguess/internal/game"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeGameError maps each engine error kind to its own status code and
// machine-readable kind, so clients never have to string-match.
func writeGameError(w http.ResponseWriter, err error) {
	type body struct {
		Kind  string `json:"kind"`
		Error string `json:"error"`
	}
	write := func(status int, kind, msg string) {
		writeJSON(w, status, body{Kind: kind, Error: msg})
	}

	switch {
	case errors.Is(err, game.ErrQuotaExhausted):
		write(http.StatusTooManyRequests, "quota_exhausted", "no moves left today")
	case errors.Is(err, game.ErrRoundInProgress):
		write(http.StatusConflict, "round_in_progress", "finish your active round first")
	case errors.Is(err, game.ErrRoundNotActive):
		write(http.StatusConflict, "round_not_active", "this round already ended")
	case errors.Is(err, game.ErrForbidden):
		write(http.StatusForbidden, "forbidden", "this round belongs to another player")
	case errors.Is(err, game.ErrLocationUnavailable):
		write(http.StatusNotFound, "location_unavailable", "no locations available to play")
	case errors.Is(err, game.ErrNotFound):
		write(http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, game.ErrConflict):
		write(http.StatusConflict, "conflict", "concurrent update, try again")
	case game.IsValidation(err):
		write(http.StatusUnprocessableEntity, "validation", err.Error())
	default:
		write(http.StatusInternalServerError, "internal", "internal error")
	}
}
