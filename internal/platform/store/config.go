package store

import (
	"time"

	"newsroom/internal/platform/config"
)

// Config aggregates backend settings
type Config struct {
	AppName string
	Role    string
	Version string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures Postgres
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	MinConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures ClickHouse
type CHConfig struct {
	Enabled bool
	URL     string
}

// ConfigFromEnv reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_*. Postgres is
// required; ClickHouse is enabled only when its DBURL is set
func ConfigFromEnv(cfg config.Conf, role string) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	ch := cfg.Prefix("SERVICE_CLICKHOUSE_")
	chURL := ch.MayString("DBURL", "")
	return Config{
		AppName: "newsroom-" + role,
		Role:    role,
		Version: cfg.MayString("NEWSROOM_VERSION", "dev"),
		PG: PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 16)),
			MinConns:       int32(pg.MayInt("MIN_CONNS", 1)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 250),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
		},
	}
}
