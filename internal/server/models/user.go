package models

import (
	"slices"
	"time"
)

// AdminGroup members may manage users and mint enrollment links for others.
const AdminGroup = "admin"

// User is an account known to the SSO service. Users are created by an
// administrator and are never deleted; disabling sets DisabledAt.
type User struct {
	ID         int64
	Username   string
	Groups     []string
	CreatedAt  time.Time
	DisabledAt *time.Time
}

// Disabled reports whether the user has been soft-disabled. Disabled users
// are rejected at every ceremony and authorization check.
func (u *User) Disabled() bool {
	return u != nil && u.DisabledAt != nil
}

func (u *User) InGroup(group string) bool {
	return u != nil && slices.Contains(u.Groups, group)
}
