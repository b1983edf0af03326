package postgres

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lapublica/pipeline-api/pkg/config"
	"github.com/lapublica/pipeline-api/pkg/logger"
)

const maxPingDelay = 5 * time.Second

// NewPool abre el pool del pipeline. Los NUMERIC se leen como decimal.Decimal
// en todas las conexiones. Si Postgres aún no acepta conexiones (compose
// arrancando) reintenta el ping hasta cfg.ConnectRetries veces.
func NewPool(ctx context.Context, cfg config.DBConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("crear pool: %w", err)
	}
	if err := waitForDB(ctx, pool, cfg.ConnectRetries, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", pc.ConnConfig.Host).
		Str("database", pc.ConnConfig.Database).
		Int32("max_conns", pc.MaxConns).
		Msg("pool PostgreSQL listo")
	return pool, nil
}

func poolConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 && int32(cfg.MinConns) <= pc.MaxConns {
		pc.MinConns = int32(cfg.MinConns)
	}
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 15 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	pc.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	return pc, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// waitForDB hace ping con espera exponencial (500ms, 1s, 2s... hasta 5s).
func waitForDB(ctx context.Context, db pinger, attempts int, log *logger.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := 500 * time.Millisecond
	var err error
	for i := 1; ; i++ {
		if err = db.Ping(ctx); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn().Err(err).Int("intento", i).Dur("espera", delay).Msg("PostgreSQL no responde")
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping DB: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, maxPingDelay)
	}
	return fmt.Errorf("ping DB tras %d intentos: %w", attempts, err)
}
