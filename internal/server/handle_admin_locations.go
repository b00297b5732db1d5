package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/panoplay/geoguess/internal/game"
	"github.com/panoplay/geoguess/internal/geo"
)

// AdminLocationRequest is the request body for POST /api/admin/locations.
type AdminLocationRequest struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	PanoURL    string  `json:"panoUrl"`
	Complexity string  `json:"complexity"`
}

// AdminLocationItem is a location with its difficulty aggregates.
type AdminLocationItem struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	PanoURL     string  `json:"panoUrl"`
	Complexity  string  `json:"complexity"`
	TimesPlayed int     `json:"timesPlayed"`
	AvgError    float64 `json:"avgError"`
	AvgTime     float64 `json:"avgTime"`
	AvgScore    float64 `json:"avgScore"`
}

func adminLocationItem(l game.Location) AdminLocationItem {
	return AdminLocationItem{
		ID:          l.ID,
		Lat:         l.Coord.Lat,
		Lng:         l.Coord.Lng,
		PanoURL:     l.PanoURL,
		Complexity:  string(l.Complexity),
		TimesPlayed: l.TimesPlayed,
		AvgError:    l.AvgError,
		AvgTime:     l.AvgTime,
		AvgScore:    l.AvgScore,
	}
}

func handleAdminListLocations(store game.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locations, err := store.ListLocations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		items := []AdminLocationItem{}
		for _, l := range locations {
			items = append(items, adminLocationItem(l))
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleAdminCreateLocation(store game.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminLocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		coord := geo.Coordinate{Lat: req.Lat, Lng: req.Lng}
		if !coord.Valid() {
			writeError(w, http.StatusBadRequest, "lat/lng out of range")
			return
		}
		if strings.TrimSpace(req.PanoURL) == "" {
			writeError(w, http.StatusBadRequest, "panoUrl is required")
			return
		}

		complexity := game.Complexity(req.Complexity)
		if complexity == "" {
			complexity = game.ComplexityNormal
		}
		switch complexity {
		case game.ComplexityEasy, game.ComplexityNormal, game.ComplexityHard:
		default:
			writeError(w, http.StatusBadRequest, "complexity must be easy, normal, or hard")
			return
		}

		loc, err := store.CreateLocation(r.Context(), game.Location{
			Coord:      coord,
			PanoURL:    req.PanoURL,
			Complexity: complexity,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, adminLocationItem(loc))
	}
}

func handleAdminGetLocation(store game.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := store.Location(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, adminLocationItem(loc))
	}
}

func handleAdminDeleteLocation(store game.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
