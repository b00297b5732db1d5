// Package geo holds the pure numeric kernel of the game: great-circle
// distance and the score decay formula. Everything here is deterministic
// and side-effect-free.
package geo

import (
	"fmt"
	"math"
	"time"
)

// earthRadiusMeters is the mean earth radius of the spherical model.
const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate is within range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters,
// using the haversine formula on a spherical earth. Symmetric, non-negative,
// zero iff a == b.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// Scorer computes round scores from distance error and elapsed time.
// Both decay factors are monotonically non-increasing and bounded in [0, 1],
// so a score is always in [0, BaseScore].
type Scorer struct {
	// BaseScore is the score for a perfect, immediate guess.
	BaseScore float64
	// MaxErrorMeters is the distance at or beyond which the score is zero.
	MaxErrorMeters float64
	// RoundDuration is the guess window; elapsed time is clamped to it.
	RoundDuration time.Duration
	// TimeGrace is the initial span during which the time factor stays 1.
	TimeGrace time.Duration
	// MinTimeFactor is the time factor at the deadline.
	MinTimeFactor float64
}

// Validate checks the parameter set once at startup so Score can stay
// assertion-free on the hot path.
func (s Scorer) Validate() error {
	if s.BaseScore <= 0 {
		return fmt.Errorf("base score must be positive, got %v", s.BaseScore)
	}
	if s.MaxErrorMeters <= 0 {
		return fmt.Errorf("max error must be positive, got %v", s.MaxErrorMeters)
	}
	if s.RoundDuration <= 0 {
		return fmt.Errorf("round duration must be positive, got %v", s.RoundDuration)
	}
	if s.TimeGrace < 0 || s.TimeGrace > s.RoundDuration {
		return fmt.Errorf("time grace %v outside [0, %v]", s.TimeGrace, s.RoundDuration)
	}
	if s.MinTimeFactor < 0 || s.MinTimeFactor > 1 {
		return fmt.Errorf("min time factor %v outside [0, 1]", s.MinTimeFactor)
	}
	return nil
}

// Score computes the round score for a guess with the given distance error
// in meters and elapsed time since round creation.
func (s Scorer) Score(distanceMeters float64, elapsed time.Duration) float64 {
	return s.BaseScore * s.distanceFactor(distanceMeters) * s.timeFactor(elapsed)
}

// distanceFactor decays linearly from 1 at zero error to 0 at the cutoff.
func (s Scorer) distanceFactor(d float64) float64 {
	if d <= 0 {
		return 1
	}
	if d >= s.MaxErrorMeters {
		return 0
	}
	return 1 - d/s.MaxErrorMeters
}

// timeFactor is 1 inside the grace window, then decays linearly to
// MinTimeFactor at the deadline. Elapsed beyond the deadline clamps.
func (s Scorer) timeFactor(elapsed time.Duration) float64 {
	if elapsed <= s.TimeGrace {
		return 1
	}
	if elapsed >= s.RoundDuration {
		return s.MinTimeFactor
	}
	span := (s.RoundDuration - s.TimeGrace).Seconds()
	into := (elapsed - s.TimeGrace).Seconds()
	return 1 - (1-s.MinTimeFactor)*(into/span)
}
