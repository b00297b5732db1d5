package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panoplay/geoguess/internal/geo"
)

// Params are the engine's tunables, resolved from config at startup.
type Params struct {
	DailyMoves     int
	RoundDuration  time.Duration
	EasyUntilGames int
	// ResetTZ is the reference timezone for the daily quota boundary.
	ResetTZ *time.Location
}

// Engine owns the round lifecycle and the quota. All methods take the
// current time explicitly; the deadline is enforced against the server
// clock, never the client's.
type Engine struct {
	store  Store
	scorer geo.Scorer
	params Params
	logger *slog.Logger
}

func NewEngine(store Store, scorer geo.Scorer, params Params, logger *slog.Logger) (*Engine, error) {
	if err := scorer.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scorer: %w", err)
	}
	if params.DailyMoves <= 0 {
		return nil, fmt.Errorf("daily moves must be positive, got %d", params.DailyMoves)
	}
	if params.ResetTZ == nil {
		params.ResetTZ = time.UTC
	}
	return &Engine{store: store, scorer: scorer, params: params, logger: logger}, nil
}

// EnsureUser registers an authenticated identity on first sight, seeding its
// quota for the current day.
func (e *Engine) EnsureUser(ctx context.Context, id, displayName string, now time.Time) error {
	return e.store.EnsureUser(ctx, id, displayName, e.params.DailyMoves, e.nextReset(now))
}

// User returns the user's profile and stats, refreshing the quota first so a
// caller crossing the day boundary sees the refilled counter.
func (e *Engine) User(ctx context.Context, userID string, now time.Time) (User, error) {
	if err := e.resetIfDue(ctx, userID, now); err != nil {
		return User{}, err
	}
	return e.store.User(ctx, userID)
}

// StartRound consumes one move and opens a round against a fresh location.
// Quota failure propagates unchanged and leaves no round behind.
func (e *Engine) StartRound(ctx context.Context, userID string, now time.Time) (Round, Location, error) {
	if err := e.resetIfDue(ctx, userID, now); err != nil {
		return Round{}, Location{}, err
	}

	user, err := e.store.User(ctx, userID)
	if err != nil {
		return Round{}, Location{}, err
	}

	loc, err := e.pickLocation(ctx, user)
	if err != nil {
		return Round{}, Location{}, err
	}

	var round Round
	err = e.retryConflict(func() error {
		var err error
		round, err = e.store.CreateRound(ctx, userID, loc.ID, now, now.Add(e.params.RoundDuration))
		return err
	})
	if err != nil {
		return Round{}, Location{}, err
	}

	e.logger.Info("round started",
		"round_id", round.ID,
		"user_id", userID,
		"location_id", loc.ID,
		"expires_at", round.ExpiresAt,
	)
	return round, loc, nil
}

// pickLocation asks the content store for a candidate the user has not
// played, preferring easy locations for new players. Constraints relax one
// at a time before giving up: repeats beat no game at all.
func (e *Engine) pickLocation(ctx context.Context, user User) (Location, error) {
	filters := []CandidateFilter{
		{ExcludeUserID: user.ID},
		{},
	}
	if user.GamesPlayed < e.params.EasyUntilGames {
		filters = append([]CandidateFilter{
			{ExcludeUserID: user.ID, Complexity: ComplexityEasy},
		}, filters...)
	}

	for _, f := range filters {
		loc, err := e.store.CandidateLocation(ctx, f)
		if errors.Is(err, ErrLocationUnavailable) {
			continue
		}
		return loc, err
	}
	return Location{}, ErrLocationUnavailable
}

// SubmitGuess resolves an active round. Past the deadline the round expires
// instead of scoring; the supplied coordinate is discarded. Exactly one
// terminal transition ever wins, even against a concurrent expiry sweep.
func (e *Engine) SubmitGuess(ctx context.Context, roundID, userID string, guess geo.Coordinate, now time.Time) (GuessResult, error) {
	if !guess.Valid() {
		return GuessResult{}, Validation("coordinate", "latitude must be in [-90, 90] and longitude in [-180, 180]")
	}

	round, err := e.store.Round(ctx, roundID)
	if err != nil {
		return GuessResult{}, err
	}
	if round.UserID != userID {
		return GuessResult{}, ErrForbidden
	}
	if round.Status != RoundActive {
		return GuessResult{}, ErrRoundNotActive
	}

	loc, err := e.store.Location(ctx, round.LocationID)
	if err != nil {
		return GuessResult{}, err
	}

	if now.After(round.ExpiresAt) {
		// Late submission: treated as a non-submission.
		err := e.retryConflict(func() error { return e.store.ExpireRound(ctx, round.ID) })
		if err != nil {
			return GuessResult{}, err
		}
		round.Status = RoundExpired
		round.Score = 0
		e.logger.Info("round expired on late submission", "round_id", round.ID, "user_id", userID)
		return GuessResult{Round: round, TrueCoord: loc.Coord}, nil
	}

	distance := geo.Distance(guess, loc.Coord)
	elapsed := now.Sub(round.CreatedAt)
	score := e.scorer.Score(distance, elapsed)

	err = e.retryConflict(func() error {
		return e.store.CompleteRound(ctx, round.ID, now, guess, distance, score)
	})
	if err != nil {
		return GuessResult{}, err
	}

	round.Status = RoundCompleted
	round.SubmittedAt = &now
	round.Guess = &guess
	round.DistanceError = &distance
	round.Score = score

	user, err := e.store.User(ctx, userID)
	if err != nil {
		return GuessResult{}, err
	}

	e.logger.Info("round completed",
		"round_id", round.ID,
		"user_id", userID,
		"distance_m", distance,
		"elapsed_s", elapsed.Seconds(),
		"score", score,
	)
	return GuessResult{
		Round:      round,
		TrueCoord:  loc.Coord,
		ElapsedSec: elapsed.Seconds(),
		User:       user,
	}, nil
}

// ExpireStaleRounds is the cleanup sweep for rounds nobody resolved. The
// deadline itself is enforced at submission time; this only bounds how long
// an abandoned round stays visible as active. Idempotent and safe to run
// concurrently with submissions.
func (e *Engine) ExpireStaleRounds(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.ExpireStaleRounds(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Info("expired stale rounds", "count", n)
	}
	return n, nil
}

// ResetDueQuotas refreshes every user whose reset timestamp has passed.
// Idempotent: a second call within the same day matches no rows.
func (e *Engine) ResetDueQuotas(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.ResetDueQuotas(ctx, e.params.DailyMoves, e.nextReset(now), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Info("reset due quotas", "count", n)
	}
	return n, nil
}

// AddMoves grants extra moves outside the daily refill. Hook for a future
// purchase flow; the tracker's non-negative invariant holds for any caller.
func (e *Engine) AddMoves(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return Validation("moves", "must be positive")
	}
	return e.store.AddMoves(ctx, userID, n)
}

// resetIfDue refreshes one user's quota if the day boundary has passed. Runs
// before every consume so a user is never denied a move they are owed.
func (e *Engine) resetIfDue(ctx context.Context, userID string, now time.Time) error {
	return e.store.ResetQuota(ctx, userID, e.params.DailyMoves, e.nextReset(now), now)
}

// nextReset is the upcoming midnight in the reference timezone.
func (e *Engine) nextReset(now time.Time) time.Time {
	local := now.In(e.params.ResetTZ)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.params.ResetTZ).AddDate(0, 0, 1)
}

// retryConflict runs fn, retrying once on a lost write race with fresh
// state. A conflict surviving the retry surfaces as ErrConflict.
func (e *Engine) retryConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, ErrConflict) {
		e.logger.Warn("persistence conflict, retrying once")
		err = fn()
	}
	return err
}
