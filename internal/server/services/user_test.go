package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*UserService, *repomanager.InMemoryRepositoryManager) {
	t.Helper()
	repos := repomanager.NewInMemoryRepositoryManager()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewUserService(nil, repos, logger, "https://sso.example.com/", time.Hour), repos
}

func TestAdd_ReturnsEnrollmentLink(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	user, link, err := svc.Add(ctx, "alice", []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, []string{"admin"}, user.Groups)

	require.NotNil(t, link)
	assert.NotEmpty(t, link.Token)
	assert.True(t, strings.HasPrefix(link.URL, "https://sso.example.com/enroll?token="), link.URL)

	// The token is live and bound to the new user.
	tok, err := repos.EnrollmentTokens(nil).Consume(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, tok.UserID)
}

func TestEdit_DisableAndEnable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Add(ctx, "alice", nil)
	require.NoError(t, err)

	disabled := true
	got, err := svc.Edit(ctx, user.ID, EditParams{Disabled: &disabled})
	require.NoError(t, err)
	assert.True(t, got.Disabled())

	// Disabling again keeps the original timestamp.
	first := got.DisabledAt
	got, err = svc.Edit(ctx, user.ID, EditParams{Disabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, first, got.DisabledAt)

	enabled := false
	got, err = svc.Edit(ctx, user.ID, EditParams{Disabled: &enabled})
	require.NoError(t, err)
	assert.False(t, got.Disabled())
}

func TestEdit_Groups(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Add(ctx, "alice", []string{"ops"})
	require.NoError(t, err)

	groups := []string{"admin", "ops"}
	got, err := svc.Edit(ctx, user.ID, EditParams{Groups: &groups})
	require.NoError(t, err)
	assert.Equal(t, groups, got.Groups)
}

func TestEdit_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Edit(context.Background(), 404, EditParams{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAdd_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "alice", nil)
	require.NoError(t, err)

	_, _, err = svc.Add(ctx, "alice", nil)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestDeleteCredential(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	alice, _, err := svc.Add(ctx, "alice", nil)
	require.NoError(t, err)
	bob, _, err := svc.Add(ctx, "bob", nil)
	require.NoError(t, err)

	cred, err := repos.Credentials(nil).Create(ctx, &models.Credential{
		UserID:       alice.ID,
		CredentialID: []byte("cred-id"),
		PublicKey:    []byte("pk"),
		Name:         "yubikey",
	})
	require.NoError(t, err)

	// Someone else's credential looks like a missing one.
	err = svc.DeleteCredential(ctx, bob.ID, cred.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, svc.DeleteCredential(ctx, alice.ID, cred.ID))

	creds, err := svc.ListCredentials(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)

	// Deleting twice misses.
	err = svc.DeleteCredential(ctx, alice.ID, cred.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGenerateEnrollmentLink_DisabledUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Add(ctx, "alice", nil)
	require.NoError(t, err)

	disabled := true
	_, err = svc.Edit(ctx, user.ID, EditParams{Disabled: &disabled})
	require.NoError(t, err)

	_, err = svc.GenerateEnrollmentLink(ctx, user.ID)
	assert.ErrorIs(t, err, common.ErrUserDisabled)
}
