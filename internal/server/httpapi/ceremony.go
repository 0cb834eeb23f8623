package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/labstack/echo/v4"
)

type loginStartReq struct {
	Username string `json:"username"`
}

type loginStartResp struct {
	PublicKey protocol.PublicKeyCredentialRequestOptions `json:"publicKey"`
	Token     string                                     `json:"token"`
}

type loginFinishReq struct {
	Token      string          `json:"token"`
	Credential json.RawMessage `json:"credential,omitempty"`
	Error      string          `json:"error,omitempty"`
	Redirect   string          `json:"redirect,omitempty"`
}

type loginFinishResp struct {
	RedirectURL string `json:"redirect_url"`
}

type enrollStartReq struct {
	Token string `json:"token"`
}

type enrollStartResp struct {
	User      userPart                                    `json:"user"`
	PublicKey protocol.PublicKeyCredentialCreationOptions `json:"publicKey"`
}

type enrollFinishReq struct {
	Credential     json.RawMessage `json:"credential"`
	CredentialName string          `json:"credential_name,omitempty"`
}

type enrollFinishResp struct {
	LoginURL string `json:"login_url"`
}

func (s *Server) loginStart(c echo.Context) error {
	var req loginStartReq
	if err := c.Bind(&req); err != nil || req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	options, token, err := s.engine.StartLogin(c.Request().Context(), req.Username)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, loginStartResp{PublicKey: options.Response, Token: token})
}

func (s *Server) loginFinish(c echo.Context) error {
	var req loginFinishReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx := c.Request().Context()

	// The browser reported a WebAuthn error. Burn the challenge so it cannot
	// be retried and send the user back to the login page.
	if req.Error != "" {
		s.engine.AbortLogin(ctx, req.Token)
		return c.JSON(http.StatusOK, loginFinishResp{
			RedirectURL: s.loginURL() + "?from=" + url.QueryEscape(req.Redirect),
		})
	}

	user, _, err := s.engine.FinishLogin(ctx, req.Token, req.Credential)
	if err != nil {
		return s.writeError(c, err)
	}

	sess, err := s.sessions.Create(ctx, user, models.SessionMetadata{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return s.writeError(c, err)
	}

	s.setSessionCookie(c, sess)
	return c.JSON(http.StatusOK, loginFinishResp{RedirectURL: s.safeRedirect(req.Redirect)})
}

func (s *Server) enrollStart(c echo.Context) error {
	var req enrollStartReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	user, options, err := s.engine.StartEnrollment(c.Request().Context(), req.Token)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, enrollStartResp{
		User:      toUserPart(user),
		PublicKey: options.Response,
	})
}

func (s *Server) enrollFinish(c echo.Context) error {
	var req enrollFinishReq
	if err := c.Bind(&req); err != nil || len(req.Credential) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credential required"})
	}

	_, err := s.engine.FinishEnrollment(c.Request().Context(), req.Credential, req.CredentialName)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, enrollFinishResp{LoginURL: s.loginURL()})
}

func (s *Server) loginURL() string {
	return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/login"
}

// safeRedirect keeps post-login redirects on our own pages: a relative path
// or one of the configured origins. Anything else falls back to the root.
func (s *Server) safeRedirect(redirect string) string {
	if redirect == "" {
		return "/"
	}
	if strings.HasPrefix(redirect, "/") && !strings.HasPrefix(redirect, "//") {
		return redirect
	}
	for _, origin := range s.cfg.RPOrigins {
		if strings.HasPrefix(redirect, strings.TrimSuffix(origin, "/")+"/") {
			return redirect
		}
	}
	return "/"
}

func (s *Server) setSessionCookie(c echo.Context, sess *models.Session) {
	c.SetCookie(&http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    s.sessionTokenFor(sess),
		Domain:   s.cfg.CookieDomain,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.PublicBaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Domain:   s.cfg.CookieDomain,
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.PublicBaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}
