// Package users declares the repository contract for website_users rows.
package users

import (
	"context"

	"github.com/dmitrijs2005/denauth/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in the assigned ID and CreatedAt.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID and GetByUsername return common.ErrorNotFound when no row matches.
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	UsernameTaken(ctx context.Context, username string) (bool, error)

	// Update writes every mutable column of user. A missing row is
	// common.ErrorNotFound.
	Update(ctx context.Context, user *models.User) error
}
