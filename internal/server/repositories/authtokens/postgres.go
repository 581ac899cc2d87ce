package authtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/dbx"
	"github.com/dmitrijs2005/denauth/internal/server/models"
)

type PostgresRepository struct {
	db    dbx.DBTX
	table Table
}

// NewPostgresRepository binds a repository to db and table. It panics on an
// unknown table, which is a programming error.
func NewPostgresRepository(db dbx.DBTX, table Table) *PostgresRepository {
	if !table.Valid() {
		panic(fmt.Sprintf("authtokens: unknown table %q", table))
	}
	return &PostgresRepository{db: db, table: table}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.AuthToken) error {

	query := fmt.Sprintf(
		`INSERT INTO %s (token_id, user_id, selector, validator_mac, expires_at)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `, r.table)

	err := r.db.QueryRowContext(ctx, query,
		token.ID, token.UserID, token.Selector, token.ValidatorMAC, token.ExpiresAt).Scan(&token.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) LockBySelector(ctx context.Context, selector string, now time.Time) ([]models.AuthToken, error) {
	query := fmt.Sprintf(
		`SELECT token_id, user_id, selector, validator_mac, created_at, expires_at FROM %s
		 WHERE selector = $1 AND expires_at > $2
		 FOR UPDATE
		 `, r.table)

	rows, err := r.db.QueryContext(ctx, query, selector, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.AuthToken
	for rows.Next() {
		var t models.AuthToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Selector, &t.ValidatorMAC, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE token_id = $1`, r.table)

	res, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, r.table)
	return r.execCount(ctx, query, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.table)
	return r.execCount(ctx, query, now)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
