package challenges

import (
	"context"
	"sync"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
)

// MemoryRepository is an in-memory ledger with the same atomic consume
// semantics as the postgres implementation.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]*models.Challenge
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]*models.Challenge)}
}

func (r *MemoryRepository) Create(ctx context.Context, ch *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(ch.Challenge)
	if _, ok := r.entries[key]; ok {
		return common.ErrorInternal
	}
	ch.CreatedAt = time.Now()
	stored := *ch
	r.entries[key] = &stored
	return nil
}

func (r *MemoryRepository) Consume(ctx context.Context, challenge []byte) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.entries[string(challenge)]
	if !ok {
		return nil, common.ErrChallengeNotFound
	}
	if ch.UsedAt != nil {
		return nil, common.ErrChallengeAlreadyUsed
	}
	if !ch.ExpiresAt.After(time.Now()) {
		return nil, common.ErrChallengeExpired
	}

	now := time.Now()
	ch.UsedAt = &now
	copied := *ch
	return &copied, nil
}

func (r *MemoryRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, ch := range r.entries {
		if ch.ExpiresAt.Before(cutoff) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}
