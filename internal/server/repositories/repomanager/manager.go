package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	AuthTokens(db dbx.DBTX, table authtokens.Table) authtokens.Repository
}
