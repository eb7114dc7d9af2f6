package database

import (
	"errors"
	"fmt"

	"mxiledger/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// IsTransient reports whether err is a lock wait, deadlock or serialization
// failure that a caller may retry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsCheckViolation reports whether err is a CHECK constraint violation
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation
}

// MapError converts transient postgres failures into ErrLockTimeout and
// leaves every other error untouched.
func MapError(err error) error {
	if err == nil || errors.Is(err, entities.ErrLockTimeout) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", entities.ErrLockTimeout, err)
	}
	return err
}
