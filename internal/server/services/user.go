// Package services contains server-side business logic. This file implements
// UserService: account creation, account editing and enrollment-link issuance,
// the administrative operations behind the user API.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/models"
	"github.com/janus-sso/janus/internal/server/repositories/repomanager"
)

// enrollmentTokenSize is the entropy in bytes behind an enrollment link.
const enrollmentTokenSize = 32

// EnrollmentLink is a single-use invitation to register an authenticator.
type EnrollmentLink struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// EditParams carries the mutable parts of a user account. Nil fields are left
// unchanged.
type EditParams struct {
	Groups   *[]string
	Disabled *bool
}

type UserService struct {
	db                 dbx.DBTX
	repomanager        repomanager.RepositoryManager
	logger             logging.Logger
	publicBaseURL      string
	enrollmentTokenTTL time.Duration
}

func NewUserService(db dbx.DBTX, m repomanager.RepositoryManager, logger logging.Logger, publicBaseURL string, enrollmentTokenTTL time.Duration) *UserService {
	return &UserService{
		db:                 db,
		repomanager:        m,
		logger:             logger.With("module", "users"),
		publicBaseURL:      strings.TrimSuffix(publicBaseURL, "/"),
		enrollmentTokenTTL: enrollmentTokenTTL,
	}
}

// Add creates a user and hands back the enrollment link to send them.
func (s *UserService) Add(ctx context.Context, username string, groups []string) (*models.User, *EnrollmentLink, error) {
	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username: username,
		Groups:   groups,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}

	link, err := s.GenerateEnrollmentLink(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "user created", "user", username)
	return user, link, nil
}

// Edit applies the given changes. Disabling takes effect on the next
// authorize check of every session the user holds.
func (s *UserService) Edit(ctx context.Context, id int64, params EditParams) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Groups != nil {
		user.Groups = *params.Groups
	}
	if params.Disabled != nil {
		if *params.Disabled && user.DisabledAt == nil {
			now := time.Now()
			user.DisabledAt = &now
		}
		if !*params.Disabled {
			user.DisabledAt = nil
		}
	}

	if err := repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	s.logger.Info(ctx, "user updated", "user", user.Username, "disabled", user.Disabled())
	return user, nil
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// ListCredentials returns the user's active credentials.
func (s *UserService) ListCredentials(ctx context.Context, userID int64) ([]*models.Credential, error) {
	return s.repomanager.Credentials(s.db).ListActiveByUser(ctx, userID)
}

// DeleteCredential soft-deletes one of the user's own credentials; it stops
// participating in ceremonies but stays on record. A credential belonging to
// someone else is indistinguishable from a missing one.
func (s *UserService) DeleteCredential(ctx context.Context, userID, credentialID int64) error {
	if err := s.repomanager.Credentials(s.db).SoftDelete(ctx, credentialID, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "credential deleted", "user_id", userID, "credential", credentialID)
	return nil
}

// GenerateEnrollmentLink issues a fresh single-use enrollment token for the
// user and renders it as the URL the enrollment page expects.
func (s *UserService) GenerateEnrollmentLink(ctx context.Context, userID int64) (*EnrollmentLink, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Disabled() {
		return nil, common.ErrUserDisabled
	}

	token, err := common.MakeRandToken(enrollmentTokenSize)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.enrollmentTokenTTL)
	err = s.repomanager.EnrollmentTokens(s.db).Create(ctx, &models.EnrollmentToken{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating enrollment token: %w", err)
	}

	s.logger.Info(ctx, "enrollment link issued", "user", user.Username, "expires_at", expiresAt)
	return &EnrollmentLink{
		Token:     token,
		URL:       s.publicBaseURL + "/enroll?token=" + url.QueryEscape(token),
		ExpiresAt: expiresAt,
	}, nil
}
