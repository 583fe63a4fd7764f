package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates a missing row within the caller's scope.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness violation or a guarded update that lost.
	ErrConflict = errors.New("record conflict")
	// ErrInvalidReference indicates a referenced row is missing from the tenant.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInvalidValue indicates a check constraint rejected the row.
	ErrInvalidValue = errors.New("value violates a constraint")
	// ErrEventFull indicates the event reached max_attendees.
	ErrEventFull = errors.New("event is full")
	// ErrTenantRequired is returned when a tenant-scoped call has no tenant.
	ErrTenantRequired = errors.New("tenant scope required")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
