// Package httpapi serves the browser-facing JSON API: the WebAuthn ceremony
// endpoints, user administration and session introspection.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/ceremony"
	"github.com/janus-sso/janus/internal/server/config"
	"github.com/janus-sso/janus/internal/server/services"
	"github.com/janus-sso/janus/internal/server/sessions"
	"github.com/labstack/echo/v4"
)

type Server struct {
	echo     *echo.Echo
	logger   logging.Logger
	cfg      *config.Config
	engine   *ceremony.Engine
	sessions *sessions.Manager
	users    *services.UserService
}

func NewServer(cfg *config.Config, engine *ceremony.Engine, sessionManager *sessions.Manager, userService *services.UserService, logger logging.Logger) *Server {
	s := &Server{
		echo:     echo.New(),
		logger:   logger.With("module", "httpapi"),
		cfg:      cfg,
		engine:   engine,
		sessions: sessionManager,
		users:    userService,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.requestID)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/login/start", s.loginStart)
	api.POST("/login/finish", s.loginFinish)
	api.POST("/enroll/start", s.enrollStart)
	api.POST("/enroll/finish", s.enrollFinish)

	api.GET("/whoami", s.whoami, s.requireSession)
	api.POST("/logout", s.logout, s.requireSession)
	api.GET("/credentials", s.credentialList, s.requireSession)
	api.DELETE("/credentials/:id", s.credentialDelete, s.requireSession)

	admin := api.Group("/users", s.requireAdmin)
	admin.POST("", s.userAdd)
	admin.PUT("/:id", s.userEdit)
	admin.POST("/:id/enrollment-link", s.enrollmentLink)
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// requestID tags every request with an ID for log correlation, keeping one
// supplied by the proxy if present.
func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		c.Set("request_id", id)
		return next(c)
	}
}

// writeError renders a sentinel error as the right status code without
// leaking internals.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, common.ErrorAlreadyExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
	case errors.Is(err, common.ErrUserDisabled),
		errors.Is(err, common.ErrEnrollmentTokenInvalid):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrNoSession),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrSessionRevoked),
		errors.Is(err, common.ErrChallengeNotFound),
		errors.Is(err, common.ErrChallengeExpired),
		errors.Is(err, common.ErrChallengeAlreadyUsed),
		errors.Is(err, common.ErrVerificationFailed),
		errors.Is(err, common.ErrCredentialNotFound),
		errors.Is(err, common.ErrPossibleCloneDetected):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	}

	s.logger.Error(c.Request().Context(), "internal error",
		"request_id", c.Get("request_id"), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
