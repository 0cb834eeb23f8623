package ceremony

import (
	"encoding/binary"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/janus-sso/janus/internal/server/models"
)

// webauthnUser adapts a user row and its live credentials to the interface
// the protocol library verifies against.
type webauthnUser struct {
	user  *models.User
	creds []*models.Credential
}

// userHandle renders the numeric user ID as the fixed-width WebAuthn user
// handle. The mapping must be stable for the life of the user: the handle is
// baked into pending ceremony state and compared on finish.
func userHandle(id int64) []byte {
	handle := make([]byte, 8)
	binary.BigEndian.PutUint64(handle, uint64(id))
	return handle
}

func (u *webauthnUser) WebAuthnID() []byte {
	return userHandle(u.user.ID)
}

func (u *webauthnUser) WebAuthnName() string {
	return u.user.Username
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	return u.user.Username
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	out := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		out = append(out, webauthn.Credential{
			ID:        c.CredentialID,
			PublicKey: c.PublicKey,
			Transport: transports(c.Transports),
			Authenticator: webauthn.Authenticator{
				AAGUID:    c.AAGUID,
				SignCount: c.SignCount,
			},
		})
	}
	return out
}

func transports(names []string) []protocol.AuthenticatorTransport {
	out := make([]protocol.AuthenticatorTransport, 0, len(names))
	for _, n := range names {
		out = append(out, protocol.AuthenticatorTransport(n))
	}
	return out
}

func transportNames(ts []protocol.AuthenticatorTransport) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, string(t))
	}
	return out
}
