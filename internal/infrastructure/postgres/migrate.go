package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lapublica/pipeline-api/pkg/logger"
)

// Clave del advisory lock: dos réplicas arrancando a la vez no aplican el mismo script.
const migrationLockKey int64 = 0x70697065

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT        PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate aplica, en orden por nombre, los .sql de fsys que no constan en
// schema_migrations. Todos los pendientes se aplican en una sola transacción
// bajo un advisory lock: si uno falla no queda ninguno aplicado. Devuelve
// cuántos se aplicaron.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, log *logger.Logger) (int, error) {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return 0, fmt.Errorf("crear schema_migrations: %w", err)
	}

	applied := 0
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("lock de migraciones: %w", err)
		}
		done, err := appliedMigrations(ctx, tx)
		if err != nil {
			return err
		}
		pending, err := pendingMigrations(fsys, done)
		if err != nil {
			return err
		}
		for _, name := range pending {
			if err := applyMigration(ctx, tx, fsys, name); err != nil {
				return err
			}
			log.Info().Str("migration", name).Msg("migración aplicada")
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func appliedMigrations(ctx context.Context, q Querier) (map[string]bool, error) {
	rows, err := q.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("leer schema_migrations: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("leer schema_migrations: %w", err)
	}
	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

func applyMigration(ctx context.Context, tx pgx.Tx, fsys fs.FS, name string) error {
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("leer %s: %w", name, err)
	}
	// Sin argumentos pgx usa el protocolo simple: admite varias sentencias.
	if _, err := tx.Exec(ctx, string(body)); err != nil {
		return fmt.Errorf("aplicar %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("registrar %s: %w", name, err)
	}
	return nil
}

// pendingMigrations lista los .sql de la raíz de fsys ausentes en done, ordenados.
func pendingMigrations(fsys fs.FS, done map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listar migraciones: %w", err)
	}
	var pending []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(path.Ext(name), ".sql") || done[name] {
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)
	return pending, nil
}
