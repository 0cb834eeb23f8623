package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresGet_JoinsUser(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"user_id", "metadata", "taints", "created_at", "expires_at",
		"username", "groups", "u_created_at", "disabled_at"}).
		AddRow(int64(7), []byte(`{"ip_address":"10.0.0.1"}`), []byte(`["step-up-required"]`),
			now, now.Add(time.Hour), "alice", []byte(`["admin"]`), now, nil)

	mock.ExpectQuery(`(?s)SELECT\s+s\.user_id,.*FROM\s+sessions\s+s\s+JOIN\s+users\s+u\s+ON\s+u\.id\s*=\s*s\.user_id`).
		WithArgs([]byte("sid")).
		WillReturnRows(rows)

	sess, err := repo.Get(context.Background(), []byte("sid"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), sess.UserID)
	assert.Equal(t, "10.0.0.1", sess.Metadata.IPAddress)
	assert.True(t, sess.HasTaint(models.TaintStepUpRequired))
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Username)
	assert.True(t, sess.User.InGroup(models.AdminGroup))
	assert.False(t, sess.User.Disabled())
}

func TestPostgresRevoke_AlreadyRevoked(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+metadata\s*=\s*metadata\s*\|\|`).
		WithArgs([]byte("sid"), "logout").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs([]byte("sid")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assert.NoError(t, repo.Revoke(context.Background(), []byte("sid"), "logout"))
}

func TestPostgresRevoke_Unknown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec(`(?s)UPDATE\s+sessions\s+SET\s+metadata`).
		WithArgs([]byte("sid"), "logout").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs([]byte("sid")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, repo.Revoke(context.Background(), []byte("sid"), "logout"), common.ErrorNotFound)
}

func newMemoryFixture(t *testing.T) (*MemoryRepository, *models.User) {
	t.Helper()
	userRepo := users.NewMemoryRepository()
	user, err := userRepo.Create(context.Background(), &models.User{Username: "alice"})
	require.NoError(t, err)
	return NewMemoryRepository(userRepo), user
}

func TestMemoryRevoke_FirstReasonWins(t *testing.T) {
	repo, user := newMemoryFixture(t)
	ctx := context.Background()

	sess := &models.Session{ID: []byte("sid"), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, sess))

	require.NoError(t, repo.Revoke(ctx, []byte("sid"), "logout"))
	require.NoError(t, repo.Revoke(ctx, []byte("sid"), "admin"))

	got, err := repo.Get(ctx, []byte("sid"))
	require.NoError(t, err)
	assert.Equal(t, "logout", got.Metadata.RevocationReason)
	assert.True(t, got.Revoked())
}

func TestMemoryAddTaint_DistinctSorted(t *testing.T) {
	repo, user := newMemoryFixture(t)
	ctx := context.Background()

	sess := &models.Session{ID: []byte("sid"), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, sess))

	require.NoError(t, repo.AddTaint(ctx, []byte("sid"), "b"))
	require.NoError(t, repo.AddTaint(ctx, []byte("sid"), "a"))
	require.NoError(t, repo.AddTaint(ctx, []byte("sid"), "b"))

	got, err := repo.Get(ctx, []byte("sid"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Taints)

	assert.ErrorIs(t, repo.AddTaint(ctx, []byte("other"), "a"), common.ErrorNotFound)
}
