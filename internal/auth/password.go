package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/colab/internal/apperror"
)

// MaxPasswordLen is the longest password bcrypt reads in full. Longer input
// is rejected rather than silently truncated.
const MaxPasswordLen = 72

// defaultCost applies when BCRYPT_COST is unset or non-positive.
const defaultCost = 12

// PasswordService hashes and checks the digests stored in
// users.password_digest.
type PasswordService struct {
	cost int
}

// NewPasswordService uses cost as the bcrypt work factor; cost <= 0 means
// defaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost <= 0 {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the digest for plaintext. The digest embeds its salt and
// cost, so it is stored as is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordLen {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", MaxPasswordLen))
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify returns nil when plaintext matches digest and an Unauthorized
// error when it doesn't. A malformed digest is an internal error.
func (p *PasswordService) Verify(digest, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return apperror.Unauthorized("invalid username or password")
	default:
		return fmt.Errorf("auth: comparing password digest: %w", err)
	}
}
