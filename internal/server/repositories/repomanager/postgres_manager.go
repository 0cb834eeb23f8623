// Package repomanager vends repository implementations for a storage backend
// and exposes a schema migration hook.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/server/migrations"
	"github.com/janus-sso/janus/internal/server/repositories/challenges"
	"github.com/janus-sso/janus/internal/server/repositories/credentials"
	"github.com/janus-sso/janus/internal/server/repositories/enrolltokens"
	"github.com/janus-sso/janus/internal/server/repositories/sessions"
	"github.com/janus-sso/janus/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Challenges(db dbx.DBTX) challenges.Repository {
	return challenges.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) EnrollmentTokens(db dbx.DBTX) enrolltokens.Repository {
	return enrolltokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager() (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
