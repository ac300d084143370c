package domain

import "time"

// UserType distinguishes the global super-admin from regular users.
type UserType string

const (
	UserTypeSuperAdmin UserType = "SUPER_ADMIN"
	UserTypeOther      UserType = "OTHER"
)

// Identity is the resolved caller passed into every core operation. The
// super-admin capability travels with it explicitly; nothing reads it from
// ambient state.
type Identity struct {
	UserID     string
	SuperAdmin bool
}

// IdentityOf builds the identity for a loaded user record.
func IdentityOf(user *User) Identity {
	if user == nil {
		return Identity{}
	}
	return Identity{UserID: user.ID, SuperAdmin: user.Type == UserTypeSuperAdmin}
}

// Token represents issued authentication token metadata.
type Token struct {
	SubjectID string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
