package enrolltokens

import (
	"context"
	"sync"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
)

type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.EnrollmentToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]*models.EnrollmentToken)}
}

func (r *MemoryRepository) Create(ctx context.Context, tok *models.EnrollmentToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tok.Token]; ok {
		return common.ErrorInternal
	}
	tok.CreatedAt = time.Now()
	stored := *tok
	r.tokens[tok.Token] = &stored
	return nil
}

func (r *MemoryRepository) Consume(ctx context.Context, token string) (*models.EnrollmentToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, ok := r.tokens[token]
	if !ok || tok.UsedAt != nil || !tok.ExpiresAt.After(time.Now()) {
		return nil, common.ErrEnrollmentTokenInvalid
	}

	now := time.Now()
	tok.UsedAt = &now
	copied := *tok
	return &copied, nil
}
