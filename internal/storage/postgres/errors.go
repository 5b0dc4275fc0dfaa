package postgres

import (
	"context"
	"fmt"
	"net"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/productos/internal/domain/product"
)

// SQLSTATE codes mapped to domain errors.
const (
	codeUniqueViolation  = "23505"
	codeCheckViolation   = "23514"
	codeNotNullViolation = "23502"
)

// ConnectionError reports that the database could not be reached: bad
// credentials, unreachable host, or a missing database.
type ConnectionError struct {
	// Target is host:port/database when known.
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("database connection: %v", e.Err)
	}
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// classify maps driver errors onto domain errors. Errors that already carry
// a classification are returned unchanged.
func classify(err error) error {
	if err == nil || IsConnectionError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return product.ErrConflict
		case codeCheckViolation, codeNotNullViolation:
			return product.ErrInvalid
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return &ConnectionError{Err: err}
	}
	// context.DeadlineExceeded implements net.Error. A cancelled or expired
	// caller context is not a database outage.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectionError{Err: err}
	}
	return err
}
