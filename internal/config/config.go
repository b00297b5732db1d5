package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/geoguess.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// AuthSecret verifies the identity provider's JWT assertions. The server
	// only verifies; issuing is the identity provider's job.
	AuthSecret string `env:"AUTH_SECRET,required"`

	// AdminEmail/AdminPassword seed the first admin account at startup when
	// both are set and no admins exist yet.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Game  GameConfig
	Sweep SweepConfig
}

// GameConfig holds the tunable gameplay parameters. The decay curve and the
// daily allotment are business knobs, not engine constants.
type GameConfig struct {
	DailyMoves    int           `env:"DAILY_MOVES" envDefault:"10"`
	RoundDuration time.Duration `env:"ROUND_DURATION" envDefault:"120s"`
	QuotaTZ       string        `env:"QUOTA_TZ" envDefault:"UTC"`

	BaseScore      float64       `env:"BASE_SCORE" envDefault:"5000"`
	MaxErrorMeters float64       `env:"MAX_ERROR_METERS" envDefault:"2000000"`
	TimeGrace      time.Duration `env:"TIME_GRACE" envDefault:"10s"`
	MinTimeFactor  float64       `env:"MIN_TIME_FACTOR" envDefault:"0.3"`

	// EasyUntilGames serves easy locations to players with fewer completed
	// games than this.
	EasyUntilGames int `env:"EASY_UNTIL_GAMES" envDefault:"5"`

	LeaderboardPageSize int           `env:"LEADERBOARD_PAGE_SIZE" envDefault:"20"`
	LeaderboardMinGames int           `env:"LEADERBOARD_MIN_GAMES" envDefault:"1"`
	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"15s"`
}

// SweepConfig controls the background job intervals. The jobs themselves are
// idempotent; the intervals only bound staleness.
type SweepConfig struct {
	ExpireInterval    time.Duration `env:"EXPIRE_SWEEP_INTERVAL" envDefault:"30s"`
	QuotaInterval     time.Duration `env:"QUOTA_SWEEP_INTERVAL" envDefault:"1m"`
	RecomputeInterval time.Duration `env:"RECOMPUTE_INTERVAL" envDefault:"10m"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Game.QuotaTZ); err != nil {
		return nil, fmt.Errorf("invalid QUOTA_TZ %q: %w", cfg.Game.QuotaTZ, err)
	}
	return &cfg, nil
}
