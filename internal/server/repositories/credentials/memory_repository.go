package credentials

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
)

// MemoryRepository is an in-memory Repository with the same conditional
// update semantics as the postgres implementation.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Credential
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: make(map[int64]*models.Credential)}
}

func (r *MemoryRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.byID {
		if bytes.Equal(c.CredentialID, cred.CredentialID) {
			return nil, common.ErrorInternal
		}
	}

	cred.ID = r.nextID
	r.nextID++
	cred.CreatedAt = time.Now()
	stored := *cred
	r.byID[cred.ID] = &stored
	return cred, nil
}

func (r *MemoryRepository) GetActiveByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.byID {
		if bytes.Equal(c.CredentialID, credentialID) && !c.Deleted() {
			copied := *c
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Credential
	for id := int64(1); id < r.nextID; id++ {
		c, ok := r.byID[id]
		if ok && c.UserID == userID && !c.Deleted() {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *MemoryRepository) BumpSignCount(ctx context.Context, id int64, newCount uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok || c.Deleted() || c.SignCount >= newCount {
		return false, nil
	}
	c.SignCount = newCount
	return true, nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok || c.UserID != userID || c.Deleted() {
		return common.ErrorNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}
