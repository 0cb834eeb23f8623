package models

import "time"

// EnrollmentToken is a single-use opaque token proving its holder was
// authorized (by an administrator, or by the target user themselves) to
// enroll a credential for a specific user. It is distinct from the WebAuthn
// challenge and is consumed atomically when the enrollment ceremony starts.
type EnrollmentToken struct {
	Token            string
	UserID           int64
	CreatedBySession []byte
	CreatedAt        time.Time
	ExpiresAt        time.Time
	UsedAt           *time.Time
}
