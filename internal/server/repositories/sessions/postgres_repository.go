package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, sess *models.Session) error {

	metadata, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query :=
		`INSERT INTO sessions (id, user_id, metadata, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		sess.ID, sess.UserID, metadata, sess.ExpiresAt).
		Scan(&sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id []byte) (*models.Session, error) {
	query :=
		`SELECT s.user_id, s.metadata, s.taints, s.created_at, s.expires_at,
		        u.username, u.groups, u.created_at, u.disabled_at
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.id = $1
		 `

	sess := &models.Session{ID: id, User: &models.User{}}
	var metadata, taints, groups []byte
	var disabledAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sess.UserID, &metadata, &taints, &sess.CreatedAt, &sess.ExpiresAt,
		&sess.User.Username, &groups, &sess.User.CreatedAt, &disabledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(metadata, &sess.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(taints, &sess.Taints); err != nil {
		return nil, fmt.Errorf("unmarshal taints: %w", err)
	}
	if err := json.Unmarshal(groups, &sess.User.Groups); err != nil {
		return nil, fmt.Errorf("unmarshal groups: %w", err)
	}

	sess.User.ID = sess.UserID
	if disabledAt.Valid {
		sess.User.DisabledAt = &disabledAt.Time
	}

	return sess, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id []byte, reason string) error {
	query :=
		`UPDATE sessions
		 SET metadata = metadata || jsonb_build_object('revocation_reason', $2::text)
		 WHERE id = $1 AND metadata->>'revocation_reason' IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Either the session is already revoked (fine) or it does not exist.
	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) AddTaint(ctx context.Context, id []byte, taint string) error {
	query :=
		`UPDATE sessions
		 SET taints = (
		     SELECT coalesce(jsonb_agg(DISTINCT t ORDER BY t), '[]'::jsonb)
		     FROM jsonb_array_elements_text(taints || jsonb_build_array($2::text)) AS t
		 )
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, taint)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}
