package game

import (
	"context"
	"time"

	"github.com/panoplay/geoguess/internal/geo"
)

// CandidateFilter narrows location selection. Zero values disable a
// constraint, which is how the engine relaxes the exclusion when a player
// has seen everything.
type CandidateFilter struct {
	// ExcludeUserID skips locations this user has already played.
	ExcludeUserID string
	// Complexity restricts the pick to one difficulty band.
	Complexity Complexity
}

// Store is the persistence contract the engine runs on. Implementations must
// honor the atomicity notes on each method; the engine's invariants depend
// on them, not on caller cooperation.
type Store interface {
	// EnsureUser creates the user row if missing, seeding the quota fields.
	// Existing rows are left untouched apart from the display name.
	EnsureUser(ctx context.Context, id, displayName string, moves int, resetAt time.Time) error
	User(ctx context.Context, id string) (User, error)

	// ResetQuota refills the counter and advances the reset timestamp, but
	// only while the stored reset timestamp is still due. Calling it twice
	// for the same day is a no-op.
	ResetQuota(ctx context.Context, userID string, moves int, resetAt, now time.Time) error
	// ResetDueQuotas is the sweep form over all due users.
	ResetDueQuotas(ctx context.Context, moves int, resetAt, now time.Time) (int64, error)
	// AddMoves grants extra moves. n must be positive.
	AddMoves(ctx context.Context, userID string, n int) error

	CreateLocation(ctx context.Context, loc Location) (Location, error)
	Location(ctx context.Context, id string) (Location, error)
	ListLocations(ctx context.Context) ([]Location, error)
	DeleteLocation(ctx context.Context, id string) error
	// CandidateLocation returns one random location matching the filter, or
	// ErrLocationUnavailable.
	CandidateLocation(ctx context.Context, f CandidateFilter) (Location, error)

	// CreateRound atomically consumes one move and inserts the round. Fails
	// with ErrQuotaExhausted (counter at zero, nothing inserted) or
	// ErrRoundInProgress (an active round exists, move refunded by
	// rollback).
	CreateRound(ctx context.Context, userID, locationID string, createdAt, expiresAt time.Time) (Round, error)
	Round(ctx context.Context, id string) (Round, error)

	// CompleteRound performs the single Active→Completed transition and
	// applies both aggregate updates in one transaction. A round that is no
	// longer active fails with ErrRoundNotActive and changes nothing.
	CompleteRound(ctx context.Context, roundID string, submittedAt time.Time, guess geo.Coordinate, distanceError, score float64) error
	// ExpireRound performs Active→Expired under the same guard.
	ExpireRound(ctx context.Context, roundID string) error
	// ExpireStaleRounds expires every active round past its deadline and
	// returns how many it transitioned. Terminal rounds are skipped.
	ExpireStaleRounds(ctx context.Context, now time.Time) (int64, error)

	// LeaderboardPage returns one descending page for the sort key,
	// tie-broken by user id ascending. minGames applies to the avg_score
	// sort only.
	LeaderboardPage(ctx context.Context, key SortKey, offset, limit, minGames int) ([]Entry, error)
	// RecomputeAggregates rebuilds every user and location aggregate from
	// the full round history.
	RecomputeAggregates(ctx context.Context) error
}
