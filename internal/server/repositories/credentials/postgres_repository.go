package credentials

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

const credentialColumns = `id, user_id, credential_id, public_key, name, sign_count, aaguid, transports, created_at, deleted_at, created_by_session`

func (r *PostgresRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {

	transports, err := json.Marshal(transportsOrEmpty(cred.Transports))
	if err != nil {
		return nil, fmt.Errorf("marshal transports: %w", err)
	}

	query :=
		`INSERT INTO credentials (user_id, credential_id, public_key, name, sign_count, aaguid, transports, created_by_session)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		cred.UserID, cred.CredentialID, cred.PublicKey, cred.Name,
		int64(cred.SignCount), cred.AAGUID, transports, cred.CreatedBySession).
		Scan(&cred.ID, &cred.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (r *PostgresRepository) GetActiveByCredentialID(ctx context.Context, credentialID []byte) (*models.Credential, error) {
	query :=
		`SELECT ` + credentialColumns + ` FROM credentials
		 WHERE credential_id = $1 AND deleted_at IS NULL
		 `
	return scanCredential(r.db.QueryRowContext(ctx, query, credentialID))
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.Credential, error) {
	query :=
		`SELECT ` + credentialColumns + ` FROM credentials
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		cred, err := scanCredentialRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) BumpSignCount(ctx context.Context, id int64, newCount uint32) (bool, error) {
	query :=
		`UPDATE credentials SET sign_count = $1
		 WHERE id = $2 AND sign_count < $1 AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, int64(newCount), id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return affected == 1, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, userID int64) error {
	query :=
		`UPDATE credentials SET deleted_at = now()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		 `

	res, err := r.db.ExecContext(ctx, query, id, userID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	cred, err := scanCredentialRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return cred, nil
}

func scanCredentialRow(row rowScanner) (*models.Credential, error) {
	cred := &models.Credential{}
	var signCount int64
	var transports []byte
	var deletedAt sql.NullTime

	err := row.Scan(&cred.ID, &cred.UserID, &cred.CredentialID, &cred.PublicKey,
		&cred.Name, &signCount, &cred.AAGUID, &transports,
		&cred.CreatedAt, &deletedAt, &cred.CreatedBySession)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	cred.SignCount = uint32(signCount)
	if err := json.Unmarshal(transports, &cred.Transports); err != nil {
		return nil, fmt.Errorf("unmarshal transports: %w", err)
	}
	if deletedAt.Valid {
		cred.DeletedAt = &deletedAt.Time
	}

	return cred, nil
}

func transportsOrEmpty(transports []string) []string {
	if transports == nil {
		return []string{}
	}
	return transports
}
