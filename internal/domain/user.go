package domain

import "time"

// User is an account known to the identity provider.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Type         UserType
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
