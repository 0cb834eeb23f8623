package repomanager

import (
	"context"
	"database/sql"

	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/server/repositories/challenges"
	"github.com/janus-sso/janus/internal/server/repositories/credentials"
	"github.com/janus-sso/janus/internal/server/repositories/enrolltokens"
	"github.com/janus-sso/janus/internal/server/repositories/sessions"
	"github.com/janus-sso/janus/internal/server/repositories/users"
)

// InMemoryRepositoryManager backs every repository with process memory. It
// ignores the DBTX argument and always returns the same instances, which is
// what makes it usable from tests that have no database at all.
type InMemoryRepositoryManager struct {
	users        *users.MemoryRepository
	credentials  *credentials.MemoryRepository
	challenges   *challenges.MemoryRepository
	enrollTokens *enrolltokens.MemoryRepository
	sessions     *sessions.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	u := users.NewMemoryRepository()
	return &InMemoryRepositoryManager{
		users:        u,
		credentials:  credentials.NewMemoryRepository(),
		challenges:   challenges.NewMemoryRepository(),
		enrollTokens: enrolltokens.NewMemoryRepository(),
		sessions:     sessions.NewMemoryRepository(u),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return m.credentials
}

func (m *InMemoryRepositoryManager) Challenges(db dbx.DBTX) challenges.Repository {
	return m.challenges
}

func (m *InMemoryRepositoryManager) EnrollmentTokens(db dbx.DBTX) enrolltokens.Repository {
	return m.enrollTokens
}

func (m *InMemoryRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return m.sessions
}
