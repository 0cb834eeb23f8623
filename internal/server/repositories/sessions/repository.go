package sessions

import (
	"context"

	"github.com/janus-sso/janus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, sess *models.Session) error
	// Get returns the session with its User populated. Expiry and revocation
	// are not filtered here; callers classify the row themselves.
	Get(ctx context.Context, id []byte) (*models.Session, error)
	// Revoke records a revocation reason. The first reason wins: revoking an
	// already-revoked session succeeds without changing the stored reason.
	Revoke(ctx context.Context, id []byte, reason string) error
	// AddTaint adds a taint to the session's taint set. Taints are distinct
	// and kept sorted; adding an existing taint is a no-op.
	AddTaint(ctx context.Context, id []byte, taint string) error
}
