package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, ch *models.Challenge) error {
	query :=
		`INSERT INTO challenges (challenge, operation, user_id, session_data, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		ch.Challenge, ch.Operation, ch.UserID, ch.SessionData, ch.ExpiresAt).
		Scan(&ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, challenge []byte) (*models.Challenge, error) {

	// Single conditional update: check-and-invalidate in one statement, so
	// concurrent finish attempts for the same challenge cannot both win.
	query :=
		`UPDATE challenges SET used_at = now()
		 WHERE challenge = $1 AND used_at IS NULL AND expires_at > now()
		 RETURNING operation, user_id, session_data, created_at, expires_at, used_at
		 `

	ch := &models.Challenge{Challenge: challenge}
	var userID sql.NullInt64
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, challenge).
		Scan(&ch.Operation, &userID, &ch.SessionData, &ch.CreatedAt, &ch.ExpiresAt, &usedAt)
	if err == nil {
		if userID.Valid {
			ch.UserID = &userID.Int64
		}
		if usedAt.Valid {
			ch.UsedAt = &usedAt.Time
		}
		return ch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return nil, r.classifyMiss(ctx, challenge)
}

// classifyMiss distinguishes why the conditional consume matched nothing.
func (r *PostgresRepository) classifyMiss(ctx context.Context, challenge []byte) error {
	query :=
		`SELECT expires_at, used_at FROM challenges
		 WHERE challenge = $1
		 `

	var expiresAt time.Time
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, challenge).Scan(&expiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrChallengeNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	if usedAt.Valid {
		return common.ErrChallengeAlreadyUsed
	}
	return common.ErrChallengeExpired
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query :=
		`DELETE FROM challenges
		 WHERE expires_at < $1
		 `

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return affected, nil
}
