package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies account passwords with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher returns a hasher using cost, clamped to bcrypt's range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("placeholder-password"), cost)
	return &PasswordHasher{cost: cost, dummy: dummy}
}

// Hash hashes a plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. Hash format errors are
// returned; a plain mismatch is not an error.
func (h *PasswordHasher) Verify(hashed, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Burn spends the same time as a real comparison. Used when the account
// does not exist so response timing does not reveal it.
func (h *PasswordHasher) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
