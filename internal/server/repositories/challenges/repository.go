package challenges

import (
	"context"
	"time"

	"github.com/janus-sso/janus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ch *models.Challenge) error
	// Consume atomically invalidates the ledger entry and returns it. Only
	// one concurrent caller can win; the others observe
	// common.ErrChallengeAlreadyUsed. Expired entries behave as expired and
	// unknown ones as not found, so a failed consume is classified as
	// exactly one of ErrChallengeNotFound / ErrChallengeExpired /
	// ErrChallengeAlreadyUsed.
	Consume(ctx context.Context, challenge []byte) (*models.Challenge, error)
	// SweepExpired removes entries whose expiry is older than the cutoff.
	// Pure storage reclamation: expired rows are already inert.
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
