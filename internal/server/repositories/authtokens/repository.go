// Package authtokens stores selector/validator tokens, one table per token
// kind.
package authtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/denauth/internal/server/models"
)

// Table names a token table. Only the constants below are valid; the name
// is interpolated into SQL.
type Table string

const (
	RememberTable Table = "website_token_remember"
	RecoveryTable Table = "website_token_recovery"
)

func (t Table) Valid() bool {
	return t == RememberTable || t == RecoveryTable
}

type Repository interface {
	// Create inserts token. A duplicate selector is a db error.
	Create(ctx context.Context, token *models.AuthToken) error

	// LockBySelector returns every unexpired row for selector and locks them
	// until the surrounding transaction ends. It must run inside a
	// transaction to be meaningful.
	LockBySelector(ctx context.Context, selector string, now time.Time) ([]models.AuthToken, error)

	// Delete removes one row by ID. A row that is already gone is
	// common.ErrorNotFound.
	Delete(ctx context.Context, id string) error

	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
