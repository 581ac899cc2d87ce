// Package server wires the authentication services together from a Config:
// logger, keyring (file or S3), PostgreSQL and the repositories, and runs
// the administrative commands of the denauth binary.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/denauth/internal/cachekey"
	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/keyring"
	"github.com/dmitrijs2005/denauth/internal/logging"
	"github.com/dmitrijs2005/denauth/internal/password"
	"github.com/dmitrijs2005/denauth/internal/server/config"
	"github.com/dmitrijs2005/denauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/denauth/internal/server/services"
	"github.com/dmitrijs2005/denauth/internal/server/tokens"
	"github.com/dmitrijs2005/denauth/internal/twofactor"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keyring     *keyring.Keyring
	tokens      *tokens.Service
	accounts    *services.AccountService
}

// Seams for tests.
var (
	openDB        = repomanager.OpenPostgres
	loadKeyring   = defaultLoadKeyring
	hasherOptions []password.Option
)

// NewLogger builds the JSON slog logger used by the binary.
func NewLogger(w io.Writer, level string) logging.Logger {
	return logging.NewJSONLogger(w, level)
}

// S3Source describes where the keyring lives in object storage.
func S3Source(c *config.Config) keyring.S3Source {
	return keyring.S3Source{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		Key:          c.KeyringS3Key,
	}
}

func defaultLoadKeyring(ctx context.Context, c *config.Config) (*keyring.Keyring, error) {
	if c.KeyringS3Key != "" {
		return keyring.LoadS3(ctx, S3Source(c))
	}
	return keyring.LoadFile(c.KeyringPath)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := NewLogger(os.Stdout, c.LogLevel)

	kr, err := loadKeyring(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("keyring init error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(c, logger, kr, db, db, dbx.NewSQLTransactor(db), repomanager.NewPostgresRepositoryManager())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// newApp assembles the services over an already opened store. db may be nil
// when handle and tx are not backed by SQL.
func newApp(c *config.Config, logger logging.Logger, kr *keyring.Keyring, db *sql.DB, handle dbx.DBTX, tx dbx.Transactor, m repomanager.RepositoryManager) (*App, error) {
	ck, err := cachekey.NewDeriver()
	if err != nil {
		return nil, err
	}

	ts := tokens.NewService(tx, m, kr.SharedKey, logger,
		tokens.WithValidity(tokens.KindRemember, c.RememberTokenValidity),
		tokens.WithValidity(tokens.KindRecovery, c.RecoveryTokenValidity),
	)

	as := services.NewAccountService(handle, tx, m, services.AccountDeps{
		Tokens:        ts,
		Hasher:        password.NewHasher(kr.SharedKey, hasherOptions...),
		Secrets:       twofactor.NewStore(kr.SharedKey),
		Authenticator: twofactor.NewAuthenticator(c.TwoFactorIssuer),
		CacheKeys:     ck,
		Logger:        logger,
	})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: m,
		keyring:     kr,
		tokens:      ts,
		accounts:    as,
	}, nil
}

func (app *App) Accounts() *services.AccountService { return app.accounts }
func (app *App) Tokens() *tokens.Service            { return app.tokens }

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	app.logger.Info(ctx, "migrations applied")
	return nil
}

func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}
