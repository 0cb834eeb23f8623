package enrolltokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, tok *models.EnrollmentToken) error {
	query :=
		`INSERT INTO enrollment_tokens (token, user_id, created_by_session, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		tok.Token, tok.UserID, tok.CreatedBySession, tok.ExpiresAt).
		Scan(&tok.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, token string) (*models.EnrollmentToken, error) {
	query :=
		`UPDATE enrollment_tokens SET used_at = now()
		 WHERE token = $1 AND used_at IS NULL AND expires_at > now()
		 RETURNING user_id, created_by_session, created_at, expires_at, used_at
		 `

	tok := &models.EnrollmentToken{Token: token}
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&tok.UserID, &tok.CreatedBySession, &tok.CreatedAt, &tok.ExpiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrEnrollmentTokenInvalid
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if usedAt.Valid {
		tok.UsedAt = &usedAt.Time
	}
	return tok, nil
}
