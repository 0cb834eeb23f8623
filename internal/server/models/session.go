package models

import (
	"slices"
	"time"
)

// Well-known taints. A taint marks a session as partially trusted without
// revoking it; downstream policy decides what a tainted session may do.
const (
	TaintStepUpRequired = "step-up-required"

	// Ceremony taints mark half-built sessions minted mid-ceremony. They are
	// never accepted by the authorizer; a browser holding one must finish the
	// ceremony and obtain a real session.
	TaintEnrollment = "enrollment"
	TaintStartLogin = "start_login"
)

// SessionMetadata is the free-form part of a session row, stored as JSON.
type SessionMetadata struct {
	IPAddress        string `json:"ip_address,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	RevocationReason string `json:"revocation_reason,omitempty"`
}

// Session is an authenticated browser session. The ID doubles as the bearer
// token. Sessions are never physically deleted; expiry is a read-time
// comparison and revocation sets Metadata.RevocationReason.
type Session struct {
	ID        []byte
	UserID    int64
	User      *User // populated on lookup
	Metadata  SessionMetadata
	Taints    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt.Before(now)
}

// Revoked reports whether the session carries a revocation reason.
func (s *Session) Revoked() bool {
	return s != nil && s.Metadata.RevocationReason != ""
}

func (s *Session) HasTaint(taint string) bool {
	return s != nil && slices.Contains(s.Taints, taint)
}
