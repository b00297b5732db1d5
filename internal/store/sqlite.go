// Package store implements game.Store on SQLite. Invariants the engine
// relies on live here as SQL: the guarded quota decrement, the partial
// unique index behind the one-active-round rule, and the single-transition
// guard on round completion.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/panoplay/geoguess/internal/game"
	"github.com/panoplay/geoguess/internal/geo"
)

// timeFormat is a fixed-width UTC layout so stored timestamps compare
// correctly as strings inside SQL.
const timeFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	// The driver round-trips timestamp-looking TEXT through time.Time, so
	// reads may come back without the fractional seconds formatTime wrote.
	// RFC3339 accepts both encodings of the same instant.
	return time.Parse(time.RFC3339, s)
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// mapErr translates driver-level failures into the engine's error kinds.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %s", game.ErrConflict, msg)
	case strings.Contains(msg, "UNIQUE constraint failed: rounds.user_id"):
		return game.ErrRoundInProgress
	}
	return err
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, id, displayName string, moves int, resetAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, daily_moves_remaining, quota_reset_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`, id, displayName, moves, formatTime(resetAt))
	return mapErr(err)
}

func (s *SQLiteStore) User(ctx context.Context, id string) (game.User, error) {
	var u game.User
	var resetAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, games_played, total_score, total_error, total_time,
			avg_error, avg_time, daily_moves_remaining, quota_reset_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &u.GamesPlayed, &u.TotalScore, &u.TotalError,
		&u.TotalTime, &u.AvgError, &u.AvgTime, &u.DailyMovesRemaining, &resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, game.ErrNotFound
	}
	if err != nil {
		return u, mapErr(err)
	}
	if u.QuotaResetAt, err = parseTime(resetAt); err != nil {
		return u, fmt.Errorf("parsing quota_reset_at: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) ResetQuota(ctx context.Context, userID string, moves int, resetAt, now time.Time) error {
	// The timestamp predicate makes this idempotent: a second call within
	// the same day matches nothing.
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_moves_remaining = ?, quota_reset_at = ?
		WHERE id = ? AND quota_reset_at <= ?
	`, moves, formatTime(resetAt), userID, formatTime(now))
	return mapErr(err)
}

func (s *SQLiteStore) ResetDueQuotas(ctx context.Context, moves int, resetAt, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_moves_remaining = ?, quota_reset_at = ?
		WHERE quota_reset_at <= ?
	`, moves, formatTime(resetAt), formatTime(now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) AddMoves(ctx context.Context, userID string, n int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_moves_remaining = daily_moves_remaining + ?
		WHERE id = ?
	`, n, userID)
	if err != nil {
		return mapErr(err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateLocation(ctx context.Context, loc game.Location) (game.Location, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO locations (id, lat, lng, pano_url, complexity)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?)
		RETURNING id
	`, loc.Coord.Lat, loc.Coord.Lng, loc.PanoURL, string(loc.Complexity)).Scan(&loc.ID)
	if err != nil {
		return game.Location{}, mapErr(err)
	}
	return loc, nil
}

const locationColumns = `id, lat, lng, pano_url, complexity, times_played,
	total_error, total_time, total_score, avg_error, avg_time, avg_score`

func scanLocation(row interface{ Scan(...any) error }) (game.Location, error) {
	var l game.Location
	var complexity string
	err := row.Scan(&l.ID, &l.Coord.Lat, &l.Coord.Lng, &l.PanoURL, &complexity,
		&l.TimesPlayed, &l.TotalError, &l.TotalTime, &l.TotalScore,
		&l.AvgError, &l.AvgTime, &l.AvgScore)
	l.Complexity = game.Complexity(complexity)
	return l, err
}

func (s *SQLiteStore) Location(ctx context.Context, id string) (game.Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return l, game.ErrNotFound
	}
	return l, mapErr(err)
}

func (s *SQLiteStore) ListLocations(ctx context.Context) ([]game.Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []game.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return game.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CandidateLocation(ctx context.Context, f game.CandidateFilter) (game.Location, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+locationColumns+` FROM locations l
		WHERE (? = '' OR NOT EXISTS (
			SELECT 1 FROM rounds r WHERE r.location_id = l.id AND r.user_id = ?
		))
		AND (? = '' OR l.complexity = ?)
		ORDER BY RANDOM() LIMIT 1
	`, f.ExcludeUserID, f.ExcludeUserID, string(f.Complexity), string(f.Complexity))
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return l, game.ErrLocationUnavailable
	}
	return l, mapErr(err)
}

func (s *SQLiteStore) CreateRound(ctx context.Context, userID, locationID string, createdAt, expiresAt time.Time) (game.Round, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return game.Round{}, mapErr(err)
	}
	defer tx.Rollback()

	// Quota consumption and round insertion commit or fail together, so a
	// rejected insert refunds the move.
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET daily_moves_remaining = daily_moves_remaining - 1
		WHERE id = ? AND daily_moves_remaining > 0
	`, userID)
	if err != nil {
		return game.Round{}, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.Round{}, game.ErrQuotaExhausted
	}

	r := game.Round{
		UserID:     userID,
		LocationID: locationID,
		Status:     game.RoundActive,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rounds (id, user_id, location_id, status, created_at, expires_at)
		VALUES (lower(hex(randomblob(16))), ?, ?, 'active', ?, ?)
		RETURNING id
	`, userID, locationID, formatTime(createdAt), formatTime(expiresAt)).Scan(&r.ID)
	if err != nil {
		return game.Round{}, mapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return game.Round{}, mapErr(err)
	}
	return r, nil
}

func (s *SQLiteStore) Round(ctx context.Context, id string) (game.Round, error) {
	var r game.Round
	var status, createdAt, expiresAt string
	var submittedAt sql.NullString
	var lat, lng, distErr sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, location_id, status, created_at, expires_at,
			submitted_at, guessed_lat, guessed_lng, distance_error, score
		FROM rounds WHERE id = ?
	`, id).Scan(&r.ID, &r.UserID, &r.LocationID, &status, &createdAt, &expiresAt,
		&submittedAt, &lat, &lng, &distErr, &r.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return r, game.ErrNotFound
	}
	if err != nil {
		return r, mapErr(err)
	}

	r.Status = game.RoundStatus(status)
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return r, fmt.Errorf("parsing expires_at: %w", err)
	}
	if submittedAt.Valid {
		t, err := parseTime(submittedAt.String)
		if err != nil {
			return r, fmt.Errorf("parsing submitted_at: %w", err)
		}
		r.SubmittedAt = &t
	}
	if lat.Valid && lng.Valid {
		r.Guess = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if distErr.Valid {
		r.DistanceError = &distErr.Float64
	}
	return r, nil
}

func (s *SQLiteStore) CompleteRound(ctx context.Context, roundID string, submittedAt time.Time, guess geo.Coordinate, distanceError, score float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	// The status predicate is the single-transition guard: whichever of
	// submit and expiry runs this first wins, the other sees zero rows.
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds SET status = 'completed', submitted_at = ?,
			guessed_lat = ?, guessed_lng = ?, distance_error = ?, score = ?
		WHERE id = ? AND status = 'active'
	`, formatTime(submittedAt), guess.Lat, guess.Lng, distanceError, score, roundID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrRoundNotActive
	}

	var userID, locationID, createdAt string
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, location_id, created_at FROM rounds WHERE id = ?
	`, roundID).Scan(&userID, &locationID, &createdAt)
	if err != nil {
		return mapErr(err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return fmt.Errorf("parsing created_at: %w", err)
	}
	elapsed := submittedAt.Sub(created).Seconds()

	// Incremental means: right-hand sides read the pre-update values, so
	// the averages divide the new totals by the new count.
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			games_played = games_played + 1,
			total_score = total_score + ?,
			total_error = total_error + ?,
			total_time = total_time + ?,
			avg_error = (total_error + ?) / (games_played + 1),
			avg_time = (total_time + ?) / (games_played + 1)
		WHERE id = ?
	`, score, distanceError, elapsed, distanceError, elapsed, userID)
	if err != nil {
		return mapErr(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE locations SET
			times_played = times_played + 1,
			total_score = total_score + ?,
			total_error = total_error + ?,
			total_time = total_time + ?,
			avg_error = (total_error + ?) / (times_played + 1),
			avg_time = (total_time + ?) / (times_played + 1),
			avg_score = (total_score + ?) / (times_played + 1)
		WHERE id = ?
	`, score, distanceError, elapsed, distanceError, elapsed, score, locationID)
	if err != nil {
		return mapErr(err)
	}

	return mapErr(tx.Commit())
}

func (s *SQLiteStore) ExpireRound(ctx context.Context, roundID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET status = 'expired', score = 0
		WHERE id = ? AND status = 'active'
	`, roundID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrRoundNotActive
	}
	return nil
}

func (s *SQLiteStore) ExpireStaleRounds(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rounds SET status = 'expired', score = 0
		WHERE status = 'active' AND expires_at <= ?
	`, formatTime(now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) LeaderboardPage(ctx context.Context, key game.SortKey, offset, limit, minGames int) ([]game.Entry, error) {
	var orderBy, where string
	switch key {
	case game.SortTotalScore:
		orderBy = "total_score"
	case game.SortGamesPlayed:
		orderBy = "games_played"
	case game.SortAvgScore:
		orderBy = "avg_score"
		// Zero-game users are excluded here, which also keeps the
		// division well-defined.
		where = "WHERE games_played >= ?"
	default:
		return nil, game.Validation("sort", fmt.Sprintf("unknown sort key %q", key))
	}

	args := []any{}
	if where != "" {
		args = append(args, minGames)
	}
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, total_score, games_played,
			CASE WHEN games_played > 0 THEN total_score / games_played ELSE 0 END AS avg_score
		FROM users
		`+where+`
		ORDER BY `+orderBy+` DESC, id ASC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	entries := []game.Entry{}
	for rows.Next() {
		var e game.Entry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalScore, &e.GamesPlayed, &e.AvgScore); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) RecomputeAggregates(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	// Totals first, averages second: the second statement reads the values
	// the first one committed to the row versions inside this transaction.
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			games_played = (SELECT COUNT(*) FROM rounds r
				WHERE r.user_id = users.id AND r.status = 'completed'),
			total_score = COALESCE((SELECT SUM(r.score) FROM rounds r
				WHERE r.user_id = users.id AND r.status = 'completed'), 0),
			total_error = COALESCE((SELECT SUM(r.distance_error) FROM rounds r
				WHERE r.user_id = users.id AND r.status = 'completed'), 0),
			total_time = COALESCE((SELECT SUM((julianday(r.submitted_at) - julianday(r.created_at)) * 86400.0)
				FROM rounds r WHERE r.user_id = users.id AND r.status = 'completed'), 0)
	`)
	if err != nil {
		return mapErr(err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			avg_error = CASE WHEN games_played > 0 THEN total_error / games_played ELSE 0 END,
			avg_time = CASE WHEN games_played > 0 THEN total_time / games_played ELSE 0 END
	`)
	if err != nil {
		return mapErr(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE locations SET
			times_played = (SELECT COUNT(*) FROM rounds r
				WHERE r.location_id = locations.id AND r.status = 'completed'),
			total_score = COALESCE((SELECT SUM(r.score) FROM rounds r
				WHERE r.location_id = locations.id AND r.status = 'completed'), 0),
			total_error = COALESCE((SELECT SUM(r.distance_error) FROM rounds r
				WHERE r.location_id = locations.id AND r.status = 'completed'), 0),
			total_time = COALESCE((SELECT SUM((julianday(r.submitted_at) - julianday(r.created_at)) * 86400.0)
				FROM rounds r WHERE r.location_id = locations.id AND r.status = 'completed'), 0)
	`)
	if err != nil {
		return mapErr(err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE locations SET
			avg_error = CASE WHEN times_played > 0 THEN total_error / times_played ELSE 0 END,
			avg_time = CASE WHEN times_played > 0 THEN total_time / times_played ELSE 0 END,
			avg_score = CASE WHEN times_played > 0 THEN total_score / times_played ELSE 0 END
	`)
	if err != nil {
		return mapErr(err)
	}

	return mapErr(tx.Commit())
}
