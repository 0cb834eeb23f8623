package enrolltokens

import (
	"context"

	"github.com/janus-sso/janus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tok *models.EnrollmentToken) error
	// Consume atomically marks the token used and returns it. A token can be
	// consumed at most once and only before expiry; any miss is
	// common.ErrEnrollmentTokenInvalid (the holder learns nothing more).
	Consume(ctx context.Context, token string) (*models.EnrollmentToken, error)
}
