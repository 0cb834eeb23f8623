package models

import "time"

// Ceremony operation kinds recorded in the challenge ledger.
const (
	OperationEnroll = "enroll"
	OperationLogin  = "login"
)

// Challenge is one entry of the challenge ledger: a single outstanding
// ceremony. The challenge bytes are the primary key; an entry is accepted at
// most once and only before ExpiresAt. Entries past expiry are inert even
// before the sweep removes them.
//
// UserID is nil for decoy login flows, which guarantees the finish step can
// never succeed.
type Challenge struct {
	Challenge   []byte
	Operation   string
	UserID      *int64
	SessionData []byte // serialized ceremony state for the pending exchange
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}
