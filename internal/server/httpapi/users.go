package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/services"
	"github.com/janus-sso/janus/internal/server/sessions"
	"github.com/labstack/echo/v4"
)

type userPart struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
	Disabled bool     `json:"disabled"`
}

func toUserPart(u *models.User) userPart {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	return userPart{ID: u.ID, Username: u.Username, Groups: groups, Disabled: u.Disabled()}
}

type userAddReq struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups,omitempty"`
}

type userAddResp struct {
	User            userPart  `json:"user"`
	EnrollmentToken string    `json:"enrollment_token"`
	EnrollmentURL   string    `json:"enrollment_url"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type userEditReq struct {
	Groups   *[]string `json:"groups,omitempty"`
	Disabled *bool     `json:"disabled,omitempty"`
}

type enrollmentLinkResp struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) userAdd(c echo.Context) error {
	var req userAddReq
	if err := c.Bind(&req); err != nil || req.Username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	user, link, err := s.users.Add(c.Request().Context(), req.Username, req.Groups)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, userAddResp{
		User:            toUserPart(user),
		EnrollmentToken: link.Token,
		EnrollmentURL:   link.URL,
		ExpiresAt:       link.ExpiresAt,
	})
}

func (s *Server) userEdit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req userEditReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	user, err := s.users.Edit(c.Request().Context(), id, services.EditParams{
		Groups:   req.Groups,
		Disabled: req.Disabled,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(user)})
}

func (s *Server) enrollmentLink(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	link, err := s.users.GenerateEnrollmentLink(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, enrollmentLinkResp{
		URL:       link.URL,
		Token:     link.Token,
		ExpiresAt: link.ExpiresAt,
	})
}

func (s *Server) whoami(c echo.Context) error {
	sess := sessionFromContext(c)
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(sess.User)})
}

func (s *Server) logout(c echo.Context) error {
	token, _ := c.Get("session_token").(string)

	if err := s.sessions.Revoke(c.Request().Context(), token, "logout"); err != nil {
		return s.writeError(c, err)
	}

	s.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sessionTokenFor(sess *models.Session) string {
	return sessions.EncodeID(sess.ID)
}
