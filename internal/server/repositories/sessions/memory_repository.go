package sessions

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/repositories/users"
)

// MemoryRepository keeps sessions in process memory. Lookups resolve the
// owning user through the users repository the same way the SQL join does.
type MemoryRepository struct {
	mu    sync.Mutex
	users users.Repository
	byID  map[string]*models.Session
}

func NewMemoryRepository(users users.Repository) *MemoryRepository {
	return &MemoryRepository{users: users, byID: make(map[string]*models.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, sess *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(sess.ID)
	if _, ok := r.byID[key]; ok {
		return common.ErrorInternal
	}
	sess.CreatedAt = time.Now()
	r.byID[key] = cloneSession(sess)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id []byte) (*models.Session, error) {
	r.mu.Lock()
	stored, ok := r.byID[string(id)]
	if !ok {
		r.mu.Unlock()
		return nil, common.ErrorNotFound
	}
	sess := cloneSession(stored)
	r.mu.Unlock()

	user, err := r.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = user
	return sess, nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id []byte, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byID[string(id)]
	if !ok {
		return common.ErrorNotFound
	}
	if sess.Metadata.RevocationReason == "" {
		sess.Metadata.RevocationReason = reason
	}
	return nil
}

func (r *MemoryRepository) AddTaint(ctx context.Context, id []byte, taint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byID[string(id)]
	if !ok {
		return common.ErrorNotFound
	}
	if !slices.Contains(sess.Taints, taint) {
		sess.Taints = append(sess.Taints, taint)
		slices.Sort(sess.Taints)
	}
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.ID = append([]byte(nil), s.ID...)
	c.Taints = append([]string(nil), s.Taints...)
	c.User = nil
	return &c
}
