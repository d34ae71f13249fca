package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped below
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgCheckViolation       = "23514"
	pgStringTruncation     = "22001"
	pgInvalidText          = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgReadOnlyTransaction  = "25006"
	pgCannotConnectNow     = "57P03"
	pgAdminShutdown        = "57P01"
	pgQueryCanceled        = "57014"
)

// ExtractPgError returns the *pgconn.PgError at the root of err
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether err is a Postgres error with the given SQLSTATE
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsDuplicateKey reports a unique violation, either raw from Postgres or
// already classified as ErrorCodeDuplicateKey
func IsDuplicateKey(err error) bool {
	return IsSQLState(err, pgUniqueViolation) || IsCode(err, ErrorCodeDuplicateKey)
}

// IsForeignKeyViolation reports a foreign key violation
func IsForeignKeyViolation(err error) bool { return IsSQLState(err, pgForeignKeyViolation) }

// DBErrorCode maps a Postgres error to an ErrorCode; ok is false for non-pg errors
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgForeignKeyViolation, pgStringTruncation, pgInvalidText:
		return ErrorCodeInvalidArgument, true
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation, true
	case pgReadOnlyTransaction, pgCannotConnectNow, pgAdminShutdown:
		return ErrorCodeUnavailable, true
	case pgQueryCanceled:
		return ErrorCodeTimeout, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with its mapped code; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
		if stderrs.Is(err, context.DeadlineExceeded) {
			code = ErrorCodeTimeout
		}
	}
	return AttachFieldFromPg(Wrap(err, code, msg))
}

// FromPostgresf is FromPostgres with a formatted message
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// AttachFieldFromPg sets the field from the PgError column, or from the
// constraint name with the table prefix and _key/_fkey suffix removed
// (signals_content_hash_key -> content_hash)
func AttachFieldFromPg(err error) error {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return err
	}
	if col := strings.TrimSpace(pgErr.ColumnName); col != "" {
		return WithField(err, col)
	}
	c := strings.TrimSpace(pgErr.ConstraintName)
	for _, suf := range []string{"_fkey", "_key", "_idx", "_check"} {
		c = strings.TrimSuffix(c, suf)
	}
	if t := strings.TrimSpace(pgErr.TableName); t != "" {
		c = strings.TrimPrefix(c, t+"_")
	}
	if c == "" {
		return err
	}
	return WithField(err, c)
}

// IsRetryable reports transient database conditions: serialization failures,
// deadlocks, lock timeouts and dropped connections. Local cancellation is never retryable
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgErr, ok := ExtractPgError(err); ok {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgCannotConnectNow, pgAdminShutdown:
			return true
		}
		return false
	}
	s := strings.ToLower(Root(err).Error())
	for _, frag := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"canceling statement due to lock timeout",
		"conn closed",
		"connection reset by peer",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
