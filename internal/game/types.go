// Package game implements the round engine: the quota tracker, the round
// state machine, and the leaderboard/location aggregator. Persistence goes
// through the Store interface; HTTP lives in internal/server.
package game

import (
	"time"

	"github.com/panoplay/geoguess/internal/geo"
)

// User is a player with cumulative stats and the daily move quota.
// Aggregates are mutated only by round completion; the quota only by the
// tracker.
type User struct {
	ID          string
	DisplayName string

	GamesPlayed int
	TotalScore  float64
	TotalError  float64
	TotalTime   float64
	AvgError    float64
	AvgTime     float64

	DailyMovesRemaining int
	QuotaResetAt        time.Time
}

type Complexity string

const (
	ComplexityEasy   Complexity = "easy"
	ComplexityNormal Complexity = "normal"
	ComplexityHard   Complexity = "hard"
)

// Location is a panorama with its hidden true coordinate and running
// difficulty aggregates.
type Location struct {
	ID         string
	Coord      geo.Coordinate
	PanoURL    string
	Complexity Complexity

	TimesPlayed int
	TotalError  float64
	TotalTime   float64
	TotalScore  float64
	AvgError    float64
	AvgTime     float64
	AvgScore    float64
}

type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
	RoundExpired   RoundStatus = "expired"
)

// Round is one play of the panorama-guess-score loop. ExpiresAt is fixed at
// creation; guess, distance error, and score are set together on the single
// terminal transition and never touched again.
type Round struct {
	ID         string
	UserID     string
	LocationID string
	Status     RoundStatus

	CreatedAt   time.Time
	ExpiresAt   time.Time
	SubmittedAt *time.Time

	Guess         *geo.Coordinate
	DistanceError *float64
	Score         float64
}

// GuessResult is what SubmitGuess hands back to the caller. The true
// coordinate is only revealed here, once the round is terminal.
type GuessResult struct {
	Round      Round
	TrueCoord  geo.Coordinate
	ElapsedSec float64
	User       User
}

// SortKey selects the leaderboard ordering.
type SortKey string

const (
	SortTotalScore  SortKey = "total_score"
	SortGamesPlayed SortKey = "games_played"
	SortAvgScore    SortKey = "avg_score"
)

// ParseSortKey validates a client-supplied sort key, defaulting to
// total_score for an empty value.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortTotalScore, nil
	case SortTotalScore, SortGamesPlayed, SortAvgScore:
		return SortKey(s), nil
	}
	return "", Validation("sort", "must be one of total_score, games_played, avg_score")
}

// Entry is one leaderboard row. Derived, never stored.
type Entry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	TotalScore  float64 `json:"totalScore"`
	GamesPlayed int     `json:"gamesPlayed"`
	AvgScore    float64 `json:"avgScore"`
}
