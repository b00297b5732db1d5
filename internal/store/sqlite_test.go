package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/panoplay/geoguess/internal/database"
	"github.com/panoplay/geoguess/internal/game"
	"github.com/panoplay/geoguess/internal/geo"
	"github.com/panoplay/geoguess/internal/migrations"
	"github.com/panoplay/geoguess/internal/store"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return store.NewSQLiteStore(db)
}

func mustLocation(t *testing.T, st *store.SQLiteStore, lat, lng float64, c game.Complexity) game.Location {
	t.Helper()
	loc, err := st.CreateLocation(context.Background(), game.Location{
		Coord:      geo.Coordinate{Lat: lat, Lng: lng},
		PanoURL:    "https://panos.example/x",
		Complexity: c,
	})
	if err != nil {
		t.Fatalf("create location: %v", err)
	}
	return loc
}

func TestEnsureUserUpsert(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	resetAt := t0.Add(12 * time.Hour)

	if err := st.EnsureUser(ctx, "u1", "Alice", 10, resetAt); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Spend a move, then re-ensure under a new display name. Only the name
	// may change; quota and stats stay put.
	loc := mustLocation(t, st, 10, 10, game.ComplexityNormal)
	if _, err := st.CreateRound(ctx, "u1", loc.ID, t0, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := st.EnsureUser(ctx, "u1", "Alice Renamed", 10, resetAt.Add(24*time.Hour)); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}

	u, err := st.User(ctx, "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if u.DisplayName != "Alice Renamed" {
		t.Errorf("display name = %q, want Alice Renamed", u.DisplayName)
	}
	if u.DailyMovesRemaining != 9 {
		t.Errorf("moves = %d, want 9 (re-ensure must not refill)", u.DailyMovesRemaining)
	}
	if !u.QuotaResetAt.Equal(resetAt) {
		t.Errorf("reset at = %v, want %v (re-ensure must not advance)", u.QuotaResetAt, resetAt)
	}
}

func TestUserNotFound(t *testing.T) {
	st := newStore(t)

	if _, err := st.User(context.Background(), "nobody"); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := st.AddMoves(context.Background(), "nobody", 1); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("AddMoves err = %v, want ErrNotFound", err)
	}
}

func TestCandidateLocationFilters(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	easy := mustLocation(t, st, 10, 10, game.ComplexityEasy)
	hard := mustLocation(t, st, 20, 20, game.ComplexityHard)

	got, err := st.CandidateLocation(ctx, game.CandidateFilter{Complexity: game.ComplexityEasy})
	if err != nil {
		t.Fatalf("easy filter: %v", err)
	}
	if got.ID != easy.ID {
		t.Errorf("easy filter picked %s, want %s", got.ID, easy.ID)
	}

	if _, err := st.CandidateLocation(ctx, game.CandidateFilter{Complexity: game.ComplexityNormal}); !errors.Is(err, game.ErrLocationUnavailable) {
		t.Errorf("normal filter err = %v, want ErrLocationUnavailable", err)
	}

	// Exclusion hides only what the user has rounds on, regardless of
	// round status.
	if err := st.EnsureUser(ctx, "u1", "Alice", 10, t0.Add(12*time.Hour)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := st.CreateRound(ctx, "u1", hard.ID, t0, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("create round: %v", err)
	}
	got, err = st.CandidateLocation(ctx, game.CandidateFilter{ExcludeUserID: "u1"})
	if err != nil {
		t.Fatalf("exclusion: %v", err)
	}
	if got.ID != easy.ID {
		t.Errorf("exclusion picked %s, want %s", got.ID, easy.ID)
	}
}

func TestCreateRoundRefundsMoveOnActiveConflict(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, "u1", "Alice", 5, t0.Add(12*time.Hour)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	a := mustLocation(t, st, 10, 10, game.ComplexityNormal)
	b := mustLocation(t, st, 20, 20, game.ComplexityNormal)

	if _, err := st.CreateRound(ctx, "u1", a.ID, t0, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("first round: %v", err)
	}

	_, err := st.CreateRound(ctx, "u1", b.ID, t0, t0.Add(2*time.Minute))
	if !errors.Is(err, game.ErrRoundInProgress) {
		t.Fatalf("second round err = %v, want ErrRoundInProgress", err)
	}

	u, err := st.User(ctx, "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if u.DailyMovesRemaining != 4 {
		t.Errorf("moves = %d, want 4 (rejected insert must refund)", u.DailyMovesRemaining)
	}
}

func TestCompleteRoundGuard(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, "u1", "Alice", 5, t0.Add(12*time.Hour)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	loc := mustLocation(t, st, 10, 10, game.ComplexityNormal)
	round, err := st.CreateRound(ctx, "u1", loc.ID, t0, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("create round: %v", err)
	}

	if err := st.ExpireRound(ctx, round.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}

	// Both terminal transitions lose against the expired status.
	err = st.CompleteRound(ctx, round.ID, t0.Add(time.Minute), geo.Coordinate{Lat: 10, Lng: 10}, 0, 5000)
	if !errors.Is(err, game.ErrRoundNotActive) {
		t.Errorf("complete after expire err = %v, want ErrRoundNotActive", err)
	}
	if err := st.ExpireRound(ctx, round.ID); !errors.Is(err, game.ErrRoundNotActive) {
		t.Errorf("double expire err = %v, want ErrRoundNotActive", err)
	}

	// The failed completion left no aggregate behind.
	u, _ := st.User(ctx, "u1")
	if u.GamesPlayed != 0 || u.TotalScore != 0 {
		t.Errorf("user stats = %d/%v, want 0/0", u.GamesPlayed, u.TotalScore)
	}
}

func TestRoundRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, "u1", "Alice", 5, t0.Add(12*time.Hour)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	loc := mustLocation(t, st, 10, 10, game.ComplexityNormal)
	round, err := st.CreateRound(ctx, "u1", loc.ID, t0, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("create round: %v", err)
	}

	guess := geo.Coordinate{Lat: 10.5, Lng: 10.5}
	submittedAt := t0.Add(42 * time.Second)
	if err := st.CompleteRound(ctx, round.ID, submittedAt, guess, 1234.5, 4321); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := st.Round(ctx, round.ID)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if got.Status != game.RoundCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, t0)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submittedAt) {
		t.Errorf("submitted_at = %v, want %v", got.SubmittedAt, submittedAt)
	}
	if got.Guess == nil || *got.Guess != guess {
		t.Errorf("guess = %v, want %v", got.Guess, guess)
	}
	if got.DistanceError == nil || *got.DistanceError != 1234.5 {
		t.Errorf("distance error = %v, want 1234.5", got.DistanceError)
	}
	if got.Score != 4321 {
		t.Errorf("score = %v, want 4321", got.Score)
	}

	if _, err := st.Round(ctx, "nosuchround"); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("unknown round err = %v, want ErrNotFound", err)
	}
}

func TestDeleteLocation(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	loc := mustLocation(t, st, 10, 10, game.ComplexityNormal)
	if err := st.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteLocation(ctx, loc.ID); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
	if _, err := st.Location(ctx, loc.ID); !errors.Is(err, game.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
}
