package models

import "time"

// Credential is one public-key credential bound to exactly one user.
//
// SignCount is the authenticator-reported signature counter. It only ever
// grows; an authentication reporting a counter at or below the stored value
// (when counters are supported at all) indicates a possible cloned
// authenticator.
type Credential struct {
	ID               int64
	UserID           int64
	CredentialID     []byte // opaque, globally unique
	PublicKey        []byte
	Name             string
	SignCount        uint32
	AAGUID           []byte
	Transports       []string
	CreatedAt        time.Time
	DeletedAt        *time.Time
	CreatedBySession []byte
}

// Deleted reports whether the credential has been soft-deleted.
func (c *Credential) Deleted() bool {
	return c != nil && c.DeletedAt != nil
}
