package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Verify when the password does not match the hash.
var ErrPasswordMismatch = errors.New("password does not match")

// Hasher hashes and verifies credentials with bcrypt. Plaintext passwords must never be logged.
type Hasher struct {
	Cost int
	// dummy is compared against when the identity is unknown so the response time does not
	// reveal whether an email is registered.
	dummy []byte
}

// NewHasher returns a Hasher with cost clamped to bcrypt's [MinCost, MaxCost].
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("collabhub-dummy-credential"), cost)
	return &Hasher{Cost: cost, dummy: dummy}
}

// Hash returns a bcrypt hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify checks password against hash. It returns ErrPasswordMismatch on a wrong password and a
// wrapped error when the stored hash itself is unusable.
func (h *Hasher) Verify(hash string, password []byte) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), password)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("verify password hash: %w", err)
	}
}

// VerifyUnknown burns one comparison for an unknown identity and always returns ErrPasswordMismatch.
func (h *Hasher) VerifyUnknown(password []byte) error {
	if len(h.dummy) > 0 {
		_ = bcrypt.CompareHashAndPassword(h.dummy, password)
	}
	return ErrPasswordMismatch
}
