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

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Challenges(db dbx.DBTX) challenges.Repository
	EnrollmentTokens(db dbx.DBTX) enrolltokens.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
