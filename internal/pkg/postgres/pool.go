package postgres

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// NewPool creates the db pool from db.* config keys.
// It runs Migrate if db.migrate is set
func NewPool(ctx context.Context, cfg *viper.Viper) (*pgxpool.Pool, error) {
	dbConfig, err := newPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	goapp.Log.Info().Int32("max_conn", dbConfig.MaxConns).Int32("min_conn", dbConfig.MinConns).Msg("db info")
	res, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("can't init db pool: %w", err)
	}
	if cfg.GetBool("db.migrate") {
		if err := Migrate(ctx, res); err != nil {
			res.Close()
			return nil, err
		}
	}
	return res, nil
}

func newPoolConfig(cfg *viper.Viper) (*pgxpool.Config, error) {
	url := cfg.GetString("db.url")
	if url == "" {
		return nil, fmt.Errorf("no db.url")
	}
	res, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("can't parse db config: %w", err)
	}
	if mc := cfg.GetInt32("db.maxConns"); mc > 0 {
		res.MaxConns = mc
	}
	if cfg.GetBool("db.logConnections") {
		addDBLog(res)
	}
	return res, nil
}

func addDBLog(dbConfig *pgxpool.Config) {
	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		goapp.Log.Debug().Uint32("pid", c.PgConn().PID()).Msg("db connected")
		return nil
	}
	dbConfig.BeforeAcquire = func(ctx context.Context, c *pgx.Conn) bool {
		goapp.Log.Trace().Uint32("pid", c.PgConn().PID()).Msg("db acquire")
		return true
	}
	dbConfig.AfterRelease = func(c *pgx.Conn) bool {
		goapp.Log.Trace().Uint32("pid", c.PgConn().PID()).Msg("db release")
		return true
	}
}
