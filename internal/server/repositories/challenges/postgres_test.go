package challenges

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

func TestConsume_Wins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"operation", "user_id", "session_data", "created_at", "expires_at", "used_at"}).
		AddRow("login", int64(7), []byte(`{}`), now.Add(-time.Minute), now.Add(time.Minute), now)
	mock.ExpectQuery(`(?s)UPDATE\s+challenges\s+SET\s+used_at\s*=\s*now\(\)\s+WHERE\s+challenge\s*=\s*\$1\s+AND\s+used_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*now\(\)`).
		WithArgs([]byte("chal")).
		WillReturnRows(rows)

	ch, err := repo.Consume(context.Background(), []byte("chal"))
	require.NoError(t, err)
	assert.Equal(t, "login", ch.Operation)
	require.NotNil(t, ch.UserID)
	assert.Equal(t, int64(7), *ch.UserID)
	require.NotNil(t, ch.UsedAt)
}

func TestConsume_ClassifiesMiss(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		missing bool
		wantErr error
	}{
		{
			name:    "unknown challenge",
			missing: true,
			wantErr: common.ErrChallengeNotFound,
		},
		{
			name:    "already used",
			rows:    sqlmock.NewRows([]string{"expires_at", "used_at"}).AddRow(now.Add(time.Minute), now),
			wantErr: common.ErrChallengeAlreadyUsed,
		},
		{
			name:    "expired",
			rows:    sqlmock.NewRows([]string{"expires_at", "used_at"}).AddRow(now.Add(-time.Minute), nil),
			wantErr: common.ErrChallengeExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(`(?s)UPDATE\s+challenges\s+SET\s+used_at`).
				WithArgs([]byte("chal")).
				WillReturnError(sql.ErrNoRows)

			sel := mock.ExpectQuery(`(?s)SELECT\s+expires_at,\s*used_at\s+FROM\s+challenges`).
				WithArgs([]byte("chal"))
			if tt.missing {
				sel.WillReturnError(sql.ErrNoRows)
			} else {
				sel.WillReturnRows(tt.rows)
			}

			_, err := repo.Consume(context.Background(), []byte("chal"))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func newTestChallenge(challenge []byte, ttl time.Duration) *models.Challenge {
	return &models.Challenge{
		Challenge:   challenge,
		Operation:   models.OperationLogin,
		SessionData: []byte(`{}`),
		ExpiresAt:   time.Now().Add(ttl),
	}
}

func TestMemoryRepository_SingleUse(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestChallenge([]byte("c1"), time.Minute)))

	_, err := repo.Consume(ctx, []byte("c1"))
	require.NoError(t, err)

	_, err = repo.Consume(ctx, []byte("c1"))
	assert.ErrorIs(t, err, common.ErrChallengeAlreadyUsed)

	_, err = repo.Consume(ctx, []byte("unknown"))
	assert.ErrorIs(t, err, common.ErrChallengeNotFound)
}

func TestMemoryRepository_Expired(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestChallenge([]byte("c2"), -time.Minute)))

	_, err := repo.Consume(ctx, []byte("c2"))
	assert.ErrorIs(t, err, common.ErrChallengeExpired)

	removed, err := repo.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
