package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	groups, err := json.Marshal(groupsOrEmpty(user.Groups))
	if err != nil {
		return nil, fmt.Errorf("marshal groups: %w", err)
	}

	query :=
		`INSERT INTO users (username, groups)
		 VALUES ($1, $2)
		 RETURNING id, created_at
		 `

	err = r.db.QueryRowContext(ctx, query, user.Username, groups).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation
// (the username column is the only unique constraint writable here).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, username, groups, created_at, disabled_at FROM users
		 WHERE id = $1
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, groups, created_at, disabled_at FROM users
		 WHERE username = $1
		 `
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {

	groups, err := json.Marshal(groupsOrEmpty(user.Groups))
	if err != nil {
		return fmt.Errorf("marshal groups: %w", err)
	}

	query :=
		`UPDATE users SET groups = $1, disabled_at = $2
		 WHERE id = $3
		 `

	res, err := r.db.ExecContext(ctx, query, groups, user.DisabledAt, user.ID)
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

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var groups []byte
	var disabledAt sql.NullTime

	err := row.Scan(&user.ID, &user.Username, &groups, &user.CreatedAt, &disabledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(groups, &user.Groups); err != nil {
		return nil, fmt.Errorf("unmarshal groups: %w", err)
	}
	if disabledAt.Valid {
		user.DisabledAt = &disabledAt.Time
	}

	return user, nil
}

func groupsOrEmpty(groups []string) []string {
	if groups == nil {
		return []string{}
	}
	return groups
}
