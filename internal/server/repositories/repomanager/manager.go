package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelkov/licbroker/internal/dbx"
	"github.com/avelkov/licbroker/internal/server/repositories/records"
	"github.com/avelkov/licbroker/internal/server/repositories/relyingparties"
	"github.com/avelkov/licbroker/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	Users(db dbx.DBTX) users.Repository
	RelyingParties(db dbx.DBTX) relyingparties.Repository
}
