package users

import (
	"context"

	"github.com/janus-sso/janus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// Update persists groups and the disabled timestamp. Username, id and
	// creation time are immutable.
	Update(ctx context.Context, user *models.User) error
}
