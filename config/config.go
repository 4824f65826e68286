package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// DatabaseURL is the Postgres connection string for the transaction store.
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Port the HTTP server listens on
	Port string `env:"PORT" envDefault:"5250"`

	// Comma-separated list of origins allowed by CORS; * allows all
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Windows struct {
		// Trailing window (months) applied when no explicit date range is given
		RecentMonths int `env:"RECENT_WINDOW_MONTHS" envDefault:"3"`

		// Lookback (months) for the monthly summary series
		SeriesMonths int `env:"SERIES_WINDOW_MONTHS" envDefault:"35"`
	}

	// Result caps. Out-of-range caller limits are clamped, never rejected.
	Limits struct {
		Max            int `env:"MAX_LIMIT" envDefault:"5000"`
		ClusterDefault int `env:"CLUSTER_DEFAULT_LIMIT" envDefault:"1200"`
		DetailDefault  int `env:"DETAIL_DEFAULT_LIMIT" envDefault:"5"`
	}

	Tiles struct {
		// Maximum accepted zoom level for tile requests
		MaxZoom int `env:"TILE_MAX_ZOOM" envDefault:"22"`

		// Cache-Control max-age for tile responses (seconds)
		CacheSeconds int `env:"TILE_CACHE_SECONDS" envDefault:"60"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
