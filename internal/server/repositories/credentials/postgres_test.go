package credentials

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate_ReturnsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+credentials.*RETURNING\s+id,\s*created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

	cred := &models.Credential{
		UserID:       1,
		CredentialID: []byte("cred-id"),
		PublicKey:    []byte("pubkey"),
		Name:         "yubikey",
		SignCount:    0,
	}
	got, err := repo.Create(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
}

func TestGetActiveByCredentialID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+credentials\s+WHERE\s+credential_id\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL`).
		WithArgs([]byte("nope")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActiveByCredentialID(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBumpSignCount_Won(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+credentials\s+SET\s+sign_count\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+sign_count\s*<\s*\$1`).
		WithArgs(int64(10), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.BumpSignCount(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestBumpSignCount_Lost(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+credentials\s+SET\s+sign_count`).
		WithArgs(int64(10), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.BumpSignCount(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSoftDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+credentials\s+SET\s+deleted_at\s*=\s*now\(\)`).
		WithArgs(int64(9), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), 9, 1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
