// Package memstore is an in-memory RepositoryManager and dbx.Transactor.
//
// Transactions are serialized by a single mutex, which gives every
// transaction the isolation a row lock would, and a failed transaction
// restores the snapshot taken when it began. Repositories obtained outside
// WithTx lock per call.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"

	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/server/models"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/authtokens"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/users"
)

var errNotSQL = errors.New("memstore: handle does not execute SQL")

type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
	tokens map[authtokens.Table]map[string]models.AuthToken
}

func New() *Store {
	return &Store{
		users: make(map[int64]models.User),
		tokens: map[authtokens.Table]map[string]models.AuthToken{
			authtokens.RememberTable: {},
			authtokens.RecoveryTable: {},
		},
	}
}

// handle is the DBTX passed around by the store. It carries no SQL
// capability; repositories only look at whether it belongs to a transaction.
type handle struct {
	inTx bool
}

func (handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNotSQL
}

func (handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNotSQL
}

func (handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// DB returns a non-transactional handle for reads and single writes.
func (s *Store) DB() dbx.DBTX { return handle{} }

func (s *Store) WithTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, handle{inTx: true})
}

func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

func (s *Store) Users(db dbx.DBTX) users.Repository {
	return &userRepo{s: s, locked: inTx(db)}
}

func (s *Store) AuthTokens(db dbx.DBTX, table authtokens.Table) authtokens.Repository {
	if !table.Valid() {
		panic("memstore: unknown table " + string(table))
	}
	return &tokenRepo{s: s, table: table, locked: inTx(db)}
}

// TokenCount reports the number of rows in table, for assertions.
func (s *Store) TokenCount(table authtokens.Table) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens[table])
}

func inTx(db dbx.DBTX) bool {
	h, ok := db.(handle)
	return ok && h.inTx
}

type state struct {
	nextID int64
	users  map[int64]models.User
	tokens map[authtokens.Table]map[string]models.AuthToken
}

func (s *Store) snapshot() state {
	st := state{
		nextID: s.nextID,
		users:  maps.Clone(s.users),
		tokens: make(map[authtokens.Table]map[string]models.AuthToken, len(s.tokens)),
	}
	for t, rows := range s.tokens {
		st.tokens[t] = maps.Clone(rows)
	}
	return st
}

func (s *Store) restore(st state) {
	s.nextID = st.nextID
	s.users = st.users
	s.tokens = st.tokens
}

// guard runs fn under the store mutex unless the caller already holds it
// through WithTx.
func (s *Store) guard(locked bool, fn func()) {
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}
