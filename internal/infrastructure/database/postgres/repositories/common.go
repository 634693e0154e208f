// Package repositories contains the PostgreSQL implementations of the domain
// repository interfaces.  Queries go through a shared pgx pool; errors are
// translated to application error codes at this boundary.
package repositories

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes relevant to constraint translation.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

// isForeignKeyViolation reports whether err is a foreign-key violation.
func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == pgForeignKeyViolation
}

// isCheckViolation reports whether err is a CHECK-constraint violation.
func isCheckViolation(err error) bool {
	return pgErrCode(err) == pgCheckViolation
}

func normalizePage(page, pageSize int) (int, int, int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}
	return page, pageSize, (page - 1) * pageSize
}
