package ceremony

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/server/models"
)

// StartLogin begins an authentication ceremony for the given username. The
// returned token identifies the pending ceremony and must be echoed to
// FinishLogin.
//
// Unknown, disabled and credential-less usernames get a decoy: syntactically
// valid options with a fabricated credential descriptor, backed by a ledger
// entry that can never verify. The response shape is identical to the real
// one, so the endpoint does not leak which usernames exist.
func (e *Engine) StartLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, string, error) {
	user, err := e.repos.Users(e.db).GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, "", err
	}

	var creds []*models.Credential
	if user != nil && !user.Disabled() {
		creds, err = e.repos.Credentials(e.db).ListActiveByUser(ctx, user.ID)
		if err != nil {
			return nil, "", err
		}
	}

	if user == nil || user.Disabled() || len(creds) == 0 {
		return e.startDecoyLogin(ctx, username)
	}

	wUser := &webauthnUser{user: user, creds: creds}
	options, session, err := e.wa.BeginLogin(wUser)
	if err != nil {
		return nil, "", fmt.Errorf("begin login: %w", err)
	}

	if err := e.recordChallenge(ctx, models.OperationLogin, &user.ID, session); err != nil {
		return nil, "", err
	}

	e.logger.Info(ctx, "login started", "user", user.Username)
	return options, session.Challenge, nil
}

// startDecoyLogin fabricates assertion options indistinguishable from a real
// user's. The ledger entry carries no user, so the finish step can only ever
// report a verification failure.
func (e *Engine) startDecoyLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, string, error) {
	challenge, err := common.GenerateRandByteArray(32)
	if err != nil {
		return nil, "", err
	}
	token := common.Base64.EncodeToString(challenge)

	options := &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:      protocol.URLEncodedBase64(challenge),
			Timeout:        int(e.cfg.ChallengeTTL.Milliseconds()),
			RelyingPartyID: e.cfg.RPID,
			AllowedCredentials: []protocol.CredentialDescriptor{{
				Type:         protocol.PublicKeyCredentialType,
				CredentialID: e.decoyCredentialID(username),
			}},
			UserVerification: protocol.VerificationPreferred,
		},
	}

	state, err := json.Marshal(&webauthn.SessionData{Challenge: token})
	if err != nil {
		return nil, "", fmt.Errorf("marshal ceremony state: %w", err)
	}

	err = e.repos.Challenges(e.db).Create(ctx, &models.Challenge{
		Challenge:   challenge,
		Operation:   models.OperationLogin,
		SessionData: state,
		ExpiresAt:   time.Now().Add(e.cfg.ChallengeTTL),
	})
	if err != nil {
		return nil, "", err
	}

	e.logger.Info(ctx, "login started")
	return options, token, nil
}

// decoyCredentialID derives a stable fake credential ID for a username, so
// asking twice for the same unknown name yields the same descriptor.
func (e *Engine) decoyCredentialID(username string) []byte {
	h := sha256.New()
	h.Write(e.decoySeed)
	h.Write([]byte(username))
	return h.Sum(nil)
}

// FinishLogin completes an authentication ceremony. The ledger entry is
// consumed first, success or failure; a replayed token fails with
// ErrChallengeAlreadyUsed no matter what else is wrong with the request.
func (e *Engine) FinishLogin(ctx context.Context, token string, credentialJSON []byte) (*models.User, *models.Credential, error) {
	entry, session, err := e.consumeChallenge(ctx, e.db, token, models.OperationLogin)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.repos.Users(e.db).GetByID(ctx, *entry.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrVerificationFailed
		}
		return nil, nil, err
	}
	if user.Disabled() {
		return nil, nil, common.ErrUserDisabled
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(credentialJSON))
	if err != nil {
		return nil, nil, common.ErrVerificationFailed
	}

	cred, err := e.repos.Credentials(e.db).GetActiveByCredentialID(ctx, parsed.RawID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrCredentialNotFound
		}
		return nil, nil, err
	}
	if cred.UserID != user.ID {
		return nil, nil, common.ErrCredentialNotFound
	}

	creds, err := e.repos.Credentials(e.db).ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	wUser := &webauthnUser{user: user, creds: creds}
	waCred, err := e.wa.ValidateLogin(wUser, *session, parsed)
	if err != nil {
		e.logger.Warn(ctx, "login verification failed", "user", user.Username, "error", err)
		return nil, nil, common.ErrVerificationFailed
	}

	if waCred.Authenticator.CloneWarning {
		e.logger.Warn(ctx, "clone warning on login", "user", user.Username, "credential", cred.ID)
		return nil, nil, common.ErrPossibleCloneDetected
	}

	if waCred.Authenticator.SignCount > cred.SignCount {
		updated, err := e.repos.Credentials(e.db).BumpSignCount(ctx, cred.ID, waCred.Authenticator.SignCount)
		if err != nil {
			return nil, nil, err
		}
		if !updated {
			// Another login raced us past this counter value; the
			// authenticator state no longer lines up.
			e.logger.Warn(ctx, "lost sign count race", "user", user.Username, "credential", cred.ID)
			return nil, nil, common.ErrPossibleCloneDetected
		}
		cred.SignCount = waCred.Authenticator.SignCount
	}

	e.logger.Info(ctx, "login finished", "user", user.Username, "credential", cred.ID)
	return user, cred, nil
}

// AbortLogin consumes the pending ceremony after the client reported a
// WebAuthn error, so the challenge cannot be retried. Best effort: a miss
// means the entry was already unusable.
func (e *Engine) AbortLogin(ctx context.Context, token string) {
	challenge, err := common.Base64.DecodeString(token)
	if err != nil {
		return
	}
	if _, err := e.repos.Challenges(e.db).Consume(ctx, challenge); err != nil {
		e.logger.Debug(ctx, "abort login: challenge already unusable", "error", err)
	}
}
