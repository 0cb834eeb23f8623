package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/janus-sso/janus/internal/server/models"
	"github.com/labstack/echo/v4"
)

type credentialPart struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SignCount uint32    `json:"sign_count"`
	CreatedAt time.Time `json:"created_at"`
}

func toCredentialPart(c *models.Credential) credentialPart {
	return credentialPart{ID: c.ID, Name: c.Name, SignCount: c.SignCount, CreatedAt: c.CreatedAt}
}

// credentialList returns the caller's own active credentials.
func (s *Server) credentialList(c echo.Context) error {
	sess := sessionFromContext(c)

	creds, err := s.users.ListCredentials(c.Request().Context(), sess.UserID)
	if err != nil {
		return s.writeError(c, err)
	}

	parts := make([]credentialPart, 0, len(creds))
	for _, cred := range creds {
		parts = append(parts, toCredentialPart(cred))
	}
	return c.JSON(http.StatusOK, echo.Map{"credentials": parts})
}

// credentialDelete soft-deletes one of the caller's own credentials.
func (s *Server) credentialDelete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid credential id"})
	}

	sess := sessionFromContext(c)
	if err := s.users.DeleteCredential(c.Request().Context(), sess.UserID, id); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
