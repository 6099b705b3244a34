package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeUndefinedTable      = "42P01"
)

// UniqueViolation reports whether err is a unique constraint failure and,
// if so, the name of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	return pgCode(err, codeUniqueViolation)
}

// ForeignKeyViolation reports whether err is a foreign key failure.
func ForeignKeyViolation(err error) (string, bool) {
	return pgCode(err, codeForeignKeyViolation)
}

func CheckViolation(err error) (string, bool) {
	return pgCode(err, codeCheckViolation)
}

func isUndefinedTable(err error) bool {
	_, ok := pgCode(err, codeUndefinedTable)
	return ok
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func pgCode(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
