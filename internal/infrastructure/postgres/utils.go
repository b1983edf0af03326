package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE que el repositorio traduce a errores de dominio.
const (
	sqlstateUniqueViolation = "23505"
	sqlstateCheckViolation  = "23514"
	sqlstateInvalidText     = "22P02" // p. ej. un id que no es UUID
)

func sqlstate(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return sqlstate(err) == sqlstateUniqueViolation }
func isCheckViolation(err error) bool  { return sqlstate(err) == sqlstateCheckViolation }
func isInvalidText(err error) bool      { return sqlstate(err) == sqlstateInvalidText }

// nullIfEmpty guarda "" como NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "restricción de la tabla"
}
