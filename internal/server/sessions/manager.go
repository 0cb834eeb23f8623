// Package sessions issues, validates, revokes and taints browser sessions,
// and answers the reverse proxy's "is this request authorized" question.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/auth"
	"github.com/janus-sso/janus/internal/server/models"
	sessrepo "github.com/janus-sso/janus/internal/server/repositories/sessions"
)

// Config carries the policy knobs of the manager.
type Config struct {
	SessionTTL   time.Duration
	BearerSecret []byte
	BearerTTL    time.Duration
	CookieName   string
	// LoginURL is the absolute URL of the login page unauthenticated browsers
	// are redirected to.
	LoginURL string
}

type Manager struct {
	repo   sessrepo.Repository
	logger logging.Logger
	cfg    Config
}

func NewManager(repo sessrepo.Repository, logger logging.Logger, cfg Config) *Manager {
	return &Manager{repo: repo, logger: logger.With("module", "sessions"), cfg: cfg}
}

// AuthorizeRequest is the slice of an inbound HTTP request the authorizer
// needs. The proxy integration fills it from a CheckRequest; the HTTP API
// fills it from the echo request.
type AuthorizeRequest struct {
	Method        string
	URL           string
	RequestID     string
	Authorization []string
	CookieHeader  string
	Accept        string
	IPAddress     string
	UserAgent     string
}

// Allow is the positive authorization outcome. HeadersToAdd replaces any
// upstream header of the same name; HeadersToAppend is merged into whatever
// the request already carries (used to hand back cookies that were not ours).
type Allow struct {
	Username        string
	Groups          []string
	Taints          []string
	BearerToken     string
	HeadersToAdd    map[string]string
	HeadersToAppend map[string]string
}

// DenyResponse is an inline HTTP response for API clients.
type DenyResponse struct {
	StatusCode  int
	ContentType string
	Body        string
}

// Deny is the negative outcome. Exactly one of RedirectURL and Response is
// populated, chosen from the request's Accept header.
type Deny struct {
	Reason      error
	RedirectURL string
	Response    *DenyResponse
}

// Decision is the authorization verdict; exactly one field is non-nil.
type Decision struct {
	Allow *Allow
	Deny  *Deny
}

// Create mints a session for the user with a fresh random ID and the
// configured TTL. The returned session's encoded ID is the bearer token.
func (m *Manager) Create(ctx context.Context, user *models.User, meta models.SessionMetadata) (*models.Session, error) {
	if user.Disabled() {
		return nil, common.ErrUserDisabled
	}

	id, err := common.GenerateRandByteArray(SessionIDSize)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	sess := &models.Session{
		ID:        id,
		UserID:    user.ID,
		User:      user,
		Metadata:  meta,
		ExpiresAt: time.Now().Add(m.cfg.SessionTTL),
	}
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "session created", "user", user.Username, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Lookup resolves a client-presented token to a live session. Every failure
// is one of the deny-reason sentinels: ErrNoSession, ErrSessionExpired,
// ErrSessionRevoked, ErrUserDisabled.
func (m *Manager) Lookup(ctx context.Context, token string) (*models.Session, error) {
	id, err := DecodeID(token)
	if err != nil {
		return nil, err
	}

	sess, err := m.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrNoSession
		}
		return nil, err
	}

	if err := classify(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// classify maps a stored session's state to a deny reason, nil if the
// session authorizes.
func classify(sess *models.Session) error {
	switch {
	case sess.Expired(time.Now()):
		return common.ErrSessionExpired
	case sess.Revoked():
		return common.ErrSessionRevoked
	case sess.User != nil && sess.User.Disabled():
		return common.ErrUserDisabled
	case sess.HasTaint(models.TaintEnrollment) || sess.HasTaint(models.TaintStartLogin):
		// A half-built ceremony session is not a login.
		return common.ErrNoSession
	}
	return nil
}

// AuthorizeHTTP decides whether the inbound request is authorized. A deny is
// a normal Decision, not an error; the error return is for infrastructure
// failures only.
func (m *Manager) AuthorizeHTTP(ctx context.Context, req *AuthorizeRequest) (*Decision, error) {
	token, ok := m.tokenFromRequest(req)
	if !ok {
		return m.deny(ctx, req, common.ErrNoSession), nil
	}

	sess, err := m.Lookup(ctx, token)
	if err != nil {
		if isDenyReason(err) {
			return m.deny(ctx, req, err), nil
		}
		return nil, err
	}

	bearer, err := auth.GenerateToken(sess.User, m.cfg.BearerSecret, m.cfg.BearerTTL)
	if err != nil {
		return nil, fmt.Errorf("generate bearer token: %w", err)
	}

	m.logger.Debug(ctx, "request authorized",
		"request_id", req.RequestID, "method", req.Method, "url", req.URL,
		"user", sess.User.Username)

	allow := &Allow{
		Username:    sess.User.Username,
		Groups:      sess.User.Groups,
		Taints:      sess.Taints,
		BearerToken: bearer,
		HeadersToAdd: map[string]string{
			"authorization": "Bearer " + bearer,
		},
	}

	// The proxy strips the inbound Cookie header so the session token never
	// reaches the upstream; cookies that are not ours ride back in via append.
	if rest := m.passthroughCookies(req.CookieHeader); rest != "" {
		allow.HeadersToAppend = map[string]string{"cookie": rest}
	}

	return &Decision{Allow: allow}, nil
}

// passthroughCookies re-serializes every cookie from the raw header except
// the session cookie.
func (m *Manager) passthroughCookies(cookieHeader string) string {
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return ""
	}

	var rest []string
	for _, c := range cookies {
		if c.Name == m.cfg.CookieName {
			continue
		}
		rest = append(rest, c.Name+"="+c.Value)
	}
	return strings.Join(rest, "; ")
}

// Revoke records a revocation reason for the session. Revoking twice is fine;
// the first reason is retained.
func (m *Manager) Revoke(ctx context.Context, token string, reason string) error {
	id, err := DecodeID(token)
	if err != nil {
		return err
	}
	if err := m.repo.Revoke(ctx, id, reason); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNoSession
		}
		return err
	}
	m.logger.Info(ctx, "session revoked", "reason", reason)
	return nil
}

// Taint adds a marker to the session without revoking it.
func (m *Manager) Taint(ctx context.Context, token string, taint string) error {
	id, err := DecodeID(token)
	if err != nil {
		return err
	}
	if err := m.repo.AddTaint(ctx, id, taint); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrNoSession
		}
		return err
	}
	m.logger.Info(ctx, "session tainted", "taint", taint)
	return nil
}

func (m *Manager) tokenFromRequest(req *AuthorizeRequest) (string, bool) {
	if token, ok := TokenFromAuthorization(req.Authorization); ok {
		return token, true
	}
	return TokenFromCookie(req.CookieHeader, m.cfg.CookieName)
}

func (m *Manager) deny(ctx context.Context, req *AuthorizeRequest, reason error) *Decision {
	m.logger.Debug(ctx, "request denied",
		"request_id", req.RequestID, "method", req.Method, "url", req.URL,
		"reason", reason)

	if wantsHTML(req.Accept) {
		return &Decision{Deny: &Deny{
			Reason:      reason,
			RedirectURL: m.cfg.LoginURL + "?from=" + url.QueryEscape(req.URL),
		}}
	}
	return &Decision{Deny: &Deny{
		Reason: reason,
		Response: &DenyResponse{
			StatusCode:  401,
			ContentType: "application/json",
			Body:        fmt.Sprintf(`{"error":%q}`, reason.Error()),
		},
	}}
}

func isDenyReason(err error) bool {
	return errors.Is(err, common.ErrNoSession) ||
		errors.Is(err, common.ErrSessionExpired) ||
		errors.Is(err, common.ErrSessionRevoked) ||
		errors.Is(err, common.ErrUserDisabled)
}

// wantsHTML reports whether the client is a browser expecting a page rather
// than an API response.
func wantsHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
			return true
		}
	}
	return false
}
