// Package sqlxrepos implements the core repositories on PostgreSQL with
// hand-written SQL through sqlx.
package sqlxrepos

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
)

// querier is the sqlx-aware executor the repositories run their statements on.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// getExec prefers a service-provided executor when it is sqlx-aware,
// falling back to the repository's own handle.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) querier {
	if len(svcExec) > 0 {
		if q, ok := svcExec[0].(querier); ok {
			return q
		}
	}
	return db
}
