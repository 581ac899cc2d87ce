package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `user_id, username, email, display_name, active, pwhash, twofactor, gpg_fingerprint, created_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO website_users (username, email, display_name, active, pwhash, twofactor, gpg_fingerprint)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING user_id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.DisplayName, user.Active,
		user.PasswordHash, user.TwoFactorSecret, user.GPGFingerprint).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM website_users
		 WHERE user_id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM website_users
		 WHERE username = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName, &user.Active,
		&user.PasswordHash, &user.TwoFactorSecret, &user.GPGFingerprint, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM website_users WHERE username = $1)`

	var taken bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return taken, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE website_users
		 SET email = $2, display_name = $3, active = $4, pwhash = $5, twofactor = $6, gpg_fingerprint = $7
		 WHERE user_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.DisplayName, user.Active,
		user.PasswordHash, user.TwoFactorSecret, user.GPGFingerprint)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
