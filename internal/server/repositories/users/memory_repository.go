package users

import (
	"context"
	"sync"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
)

// MemoryRepository is an in-memory Repository used by tests and by
// single-process deployments that do not need durable storage.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byID: make(map[int64]*models.User)}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, common.ErrorAlreadyExists
		}
	}

	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	r.byID[user.ID] = cloneUser(user)
	return user, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.Groups = append([]string(nil), user.Groups...)
	stored.DisabledAt = user.DisabledAt
	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Groups = append([]string(nil), u.Groups...)
	if u.DisabledAt != nil {
		t := *u.DisabledAt
		c.DisabledAt = &t
	}
	return &c
}
