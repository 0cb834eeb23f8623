package ceremony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/server/models"
)

// StartEnrollment begins a registration ceremony for the holder of an
// admin-issued enrollment token. The token is consumed here, atomically:
// a ceremony that later fails needs a fresh link.
func (e *Engine) StartEnrollment(ctx context.Context, enrollmentToken string) (*models.User, *protocol.CredentialCreation, error) {
	tok, err := e.repos.EnrollmentTokens(e.db).Consume(ctx, enrollmentToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.repos.Users(e.db).GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrEnrollmentTokenInvalid
		}
		return nil, nil, err
	}
	if user.Disabled() {
		return nil, nil, common.ErrUserDisabled
	}

	creds, err := e.repos.Credentials(e.db).ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: protocol.URLEncodedBase64(c.CredentialID),
			Transport:    transports(c.Transports),
		})
	}

	wUser := &webauthnUser{user: user, creds: creds}
	options, session, err := e.wa.BeginRegistration(wUser, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, nil, fmt.Errorf("begin registration: %w", err)
	}

	if err := e.recordChallenge(ctx, models.OperationEnroll, &user.ID, session); err != nil {
		return nil, nil, err
	}

	e.logger.Info(ctx, "enrollment started", "user", user.Username)
	return user, options, nil
}

// FinishEnrollment completes a registration ceremony. The pending ledger
// entry is located through the challenge echoed in the response's client
// data and consumed whether or not verification then succeeds.
//
// Consume and credential insert share one transaction: an infrastructure
// failure between the two rolls the consume back (retriable), while a
// verification failure commits it with no credential row, so the challenge
// stays burned.
func (e *Engine) FinishEnrollment(ctx context.Context, credentialJSON []byte, credentialName string) (*models.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(credentialJSON))
	if err != nil {
		return nil, common.ErrVerificationFailed
	}

	var user *models.User
	var cred *models.Credential
	var ceremonyErr error
	err = e.withTx(ctx, func(ctx context.Context, db dbx.DBTX) error {
		entry, session, err := e.consumeChallenge(ctx, db, parsed.Response.CollectedClientData.Challenge, models.OperationEnroll)
		if err != nil {
			return err
		}

		user, err = e.repos.Users(db).GetByID(ctx, *entry.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				ceremonyErr = common.ErrVerificationFailed
				return nil
			}
			return err
		}
		if user.Disabled() {
			ceremonyErr = common.ErrUserDisabled
			return nil
		}

		creds, err := e.repos.Credentials(db).ListActiveByUser(ctx, user.ID)
		if err != nil {
			return err
		}

		wUser := &webauthnUser{user: user, creds: creds}
		waCred, err := e.wa.CreateCredential(wUser, *session, parsed)
		if err != nil {
			e.logger.Warn(ctx, "enrollment verification failed", "user", user.Username, "error", err)
			ceremonyErr = common.ErrVerificationFailed
			return nil
		}

		cred = &models.Credential{
			UserID:       user.ID,
			CredentialID: waCred.ID,
			PublicKey:    waCred.PublicKey,
			Name:         credentialName,
			SignCount:    waCred.Authenticator.SignCount,
			AAGUID:       waCred.Authenticator.AAGUID,
			Transports:   transportNames(waCred.Transport),
		}
		cred, err = e.repos.Credentials(db).Create(ctx, cred)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ceremonyErr != nil {
		return nil, ceremonyErr
	}

	e.logger.Info(ctx, "credential enrolled", "user", user.Username, "credential", cred.ID)
	return cred, nil
}

// recordChallenge persists the pending ceremony state keyed by the raw
// challenge bytes.
func (e *Engine) recordChallenge(ctx context.Context, operation string, userID *int64, session *webauthn.SessionData) error {
	challenge, err := common.Base64.DecodeString(session.Challenge)
	if err != nil {
		return fmt.Errorf("decode challenge: %w", err)
	}

	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal ceremony state: %w", err)
	}

	return e.repos.Challenges(e.db).Create(ctx, &models.Challenge{
		Challenge:   challenge,
		Operation:   operation,
		UserID:      userID,
		SessionData: state,
		ExpiresAt:   time.Now().Add(e.cfg.ChallengeTTL),
	})
}

// consumeChallenge atomically invalidates the ledger entry for the encoded
// challenge and deserializes the pending ceremony state. An entry recorded
// for a different operation kind is treated as a verification failure, not a
// ledger miss.
func (e *Engine) consumeChallenge(ctx context.Context, db dbx.DBTX, encoded string, operation string) (*models.Challenge, *webauthn.SessionData, error) {
	challenge, err := common.Base64.DecodeString(encoded)
	if err != nil {
		return nil, nil, common.ErrChallengeNotFound
	}

	entry, err := e.repos.Challenges(db).Consume(ctx, challenge)
	if err != nil {
		return nil, nil, err
	}

	if entry.Operation != operation || entry.UserID == nil {
		return nil, nil, common.ErrVerificationFailed
	}

	session := &webauthn.SessionData{}
	if err := json.Unmarshal(entry.SessionData, session); err != nil {
		return nil, nil, fmt.Errorf("unmarshal ceremony state: %w", err)
	}
	return entry, session, nil
}
