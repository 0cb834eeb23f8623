package authz

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/repositories/repomanager"
	"github.com/janus-sso/janus/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func newCheckFixture(t *testing.T) (*Server, *sessions.Manager, string) {
	t.Helper()

	repos := repomanager.NewInMemoryRepositoryManager()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	manager := sessions.NewManager(repos.Sessions(nil), logger, sessions.Config{
		SessionTTL:   time.Hour,
		BearerSecret: []byte("test-secret"),
		BearerTTL:    time.Minute,
		CookieName:   "janus-session",
		LoginURL:     "https://sso.example.com/login",
	})

	user, err := repos.Users(nil).Create(context.Background(), &models.User{
		Username: "alice",
		Groups:   []string{"admin"},
	})
	require.NoError(t, err)

	sess, err := manager.Create(context.Background(), user, models.SessionMetadata{})
	require.NoError(t, err)

	return NewServer(":0", manager, logger), manager, sessions.EncodeID(sess.ID)
}

func checkRequest(headers map[string]string) *authv3.CheckRequest {
	return &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Method:  "GET",
					Host:    "app.example.com",
					Path:    "/dashboard",
					Headers: headers,
				},
			},
		},
	}
}

func TestCheck_AllowWithSessionCookie(t *testing.T) {
	srv, _, token := newCheckFixture(t)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"cookie":            "janus-session=" + token,
		"x-forwarded-proto": "https",
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())

	ok := resp.GetOkResponse()
	require.NotNil(t, ok)
	assert.Contains(t, ok.GetHeadersToRemove(), "cookie")

	headers := map[string]string{}
	for _, h := range ok.GetHeaders() {
		headers[h.GetHeader().GetKey()] = h.GetHeader().GetValue()
	}
	assert.Equal(t, "alice", headers[UsernameHeader])
	assert.Contains(t, headers["authorization"], "Bearer ")
}

func TestCheck_AllowAppendsForeignCookies(t *testing.T) {
	srv, _, token := newCheckFixture(t)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"cookie":            "janus-session=" + token + "; theme=dark",
		"x-forwarded-proto": "https",
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())

	ok := resp.GetOkResponse()
	require.NotNil(t, ok)

	var appended *corev3.HeaderValueOption
	for _, h := range ok.GetHeaders() {
		if h.GetHeader().GetKey() == "cookie" {
			appended = h
		}
	}
	require.NotNil(t, appended, "foreign cookies must be handed to the upstream")
	assert.Equal(t, "theme=dark", appended.GetHeader().GetValue())
	assert.Equal(t, corev3.HeaderValueOption_APPEND_IF_EXISTS_OR_ADD, appended.GetAppendAction())
}

func TestCheck_AllowWithAuthorizationHeader(t *testing.T) {
	srv, _, token := newCheckFixture(t)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"authorization": "SessionID " + token,
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())
}

func TestCheck_DenyBrowserGetsRedirect(t *testing.T) {
	srv, _, _ := newCheckFixture(t)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"accept":            "text/html",
		"x-forwarded-proto": "https",
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.PermissionDenied), resp.GetStatus().GetCode())

	denied := resp.GetDeniedResponse()
	require.NotNil(t, denied)
	assert.Equal(t, int32(307), int32(denied.GetStatus().GetCode()))

	headers := map[string]string{}
	for _, h := range denied.GetHeaders() {
		headers[h.GetHeader().GetKey()] = h.GetHeader().GetValue()
	}
	assert.Equal(t,
		"https://sso.example.com/login?from=https%3A%2F%2Fapp.example.com%2Fdashboard",
		headers["location"])
}

func TestCheck_DenyAPIClientGetsInlineResponse(t *testing.T) {
	srv, _, _ := newCheckFixture(t)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"accept": "application/json",
	}))
	require.NoError(t, err)

	denied := resp.GetDeniedResponse()
	require.NotNil(t, denied)
	assert.Equal(t, int32(401), int32(denied.GetStatus().GetCode()))
	assert.JSONEq(t, `{"error":"no session"}`, denied.GetBody())
}

func TestCheck_RevokedSessionDenied(t *testing.T) {
	srv, manager, token := newCheckFixture(t)
	require.NoError(t, manager.Revoke(context.Background(), token, "admin action"))

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		"authorization": "SessionID " + token,
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.PermissionDenied), resp.GetStatus().GetCode())
}
