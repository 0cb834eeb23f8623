package credentials

import (
	"context"

	"github.com/janus-sso/janus/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	// GetActiveByCredentialID resolves a credential by its opaque WebAuthn
	// identifier, skipping soft-deleted rows.
	GetActiveByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error)
	// ListActiveByUser returns the user's non-deleted credentials.
	ListActiveByUser(ctx context.Context, userID int64) ([]*models.Credential, error)
	// BumpSignCount raises the stored signature counter to newCount. The
	// update is conditional (only applied while the stored counter is
	// strictly smaller), so it is safe under concurrent logins; the caller
	// learns via the return value whether it won the race.
	BumpSignCount(ctx context.Context, id int64, newCount uint32) (updated bool, err error)
	// SoftDelete marks the credential deleted; it no longer participates in
	// ceremonies but is retained for audit.
	SoftDelete(ctx context.Context, id, userID int64) error
}
