package dataprovider

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL error codes (SQLSTATE), class 23.
const (
	ErrCodeUniqueViolation     = "23505"
	ErrCodeForeignKeyViolation = "23503"
	ErrCodeNotNullViolation    = "23502"
	ErrCodeCheckViolation      = "23514"
)

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return nil, false
	}
	return pqErr, true
}

func hasCode(err error, code string) bool {
	pqErr, ok := pqError(err)
	return ok && string(pqErr.Code) == code
}

// IsUniqueViolation reports whether err, possibly wrapped, is a unique constraint violation.
func IsUniqueViolation(err error) bool { return hasCode(err, ErrCodeUniqueViolation) }

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool { return hasCode(err, ErrCodeForeignKeyViolation) }

// IsNotNullViolation reports whether err is a NOT NULL violation.
func IsNotNullViolation(err error) bool { return hasCode(err, ErrCodeNotNullViolation) }

// IsCheckViolation reports whether err is a CHECK constraint violation.
func IsCheckViolation(err error) bool { return hasCode(err, ErrCodeCheckViolation) }

// ErrorCode returns the SQLSTATE of a PostgreSQL error, or "".
func ErrorCode(err error) string {
	pqErr, ok := pqError(err)
	if !ok {
		return ""
	}
	return string(pqErr.Code)
}

// ErrorConstraint returns the violated constraint name of a PostgreSQL error, or "".
func ErrorConstraint(err error) string {
	pqErr, ok := pqError(err)
	if !ok {
		return ""
	}
	return pqErr.Constraint
}
