package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/opsync/internal/dbx"
	"github.com/dmitrijs2005/opsync/internal/server/repositories/operations"
	"github.com/dmitrijs2005/opsync/internal/server/repositories/records"
)

// RepositoryManager vends repositories bound to a DBTX, so the merge engine
// can use the same constructors inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Operations(db dbx.DBTX) operations.Repository
	Records(db dbx.DBTX) records.Repository
}
