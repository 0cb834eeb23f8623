package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/sessions"
	"github.com/labstack/echo/v4"
)

const adminTokenScheme = "AdminToken"

// sessionToken pulls the session token out of the request, header form
// first, cookie second.
func (s *Server) sessionToken(c echo.Context) (string, bool) {
	if token, ok := sessions.TokenFromAuthorization(c.Request().Header.Values("Authorization")); ok {
		return token, true
	}
	return sessions.TokenFromCookie(c.Request().Header.Get("Cookie"), s.cfg.CookieName)
}

// requireSession resolves the caller's session and stores it on the context.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := s.sessionToken(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no session"})
		}

		sess, err := s.sessions.Lookup(c.Request().Context(), token)
		if err != nil {
			return s.writeError(c, err)
		}

		c.Set("session", sess)
		c.Set("session_token", token)
		return next(c)
	}
}

// requireAdmin admits members of the admin group and, for first-user setup,
// the holder of the configured bootstrap token.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminTokenPresented(c) {
			return next(c)
		}

		token, ok := s.sessionToken(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no session"})
		}
		sess, err := s.sessions.Lookup(c.Request().Context(), token)
		if err != nil {
			return s.writeError(c, err)
		}
		if !sess.User.InGroup(models.AdminGroup) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin required"})
		}

		c.Set("session", sess)
		c.Set("session_token", token)
		return next(c)
	}
}

func (s *Server) adminTokenPresented(c echo.Context) bool {
	if s.cfg.AdminToken == "" {
		return false
	}
	for _, v := range c.Request().Header.Values("Authorization") {
		scheme, token, ok := strings.Cut(strings.TrimSpace(v), " ")
		if !ok || scheme != adminTokenScheme {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1 {
			return true
		}
	}
	return false
}

func sessionFromContext(c echo.Context) *models.Session {
	sess, _ := c.Get("session").(*models.Session)
	return sess
}
