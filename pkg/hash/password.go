package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	MinPasswordLength = 8
	// bcrypt ignores everything after 72 bytes.
	MaxPasswordLength = 72
)

var (
	ErrPasswordLength = fmt.Errorf("password must be %d to %d bytes", MinPasswordLength, MaxPasswordLength)
	ErrMismatch       = errors.New("password does not match")
)

// Hash returns the bcrypt hash stored on the user document.
func Hash(password string) (string, error) {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrPasswordLength
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare checks password against a stored hash. A wrong password yields
// ErrMismatch; a malformed hash is reported as is.
func Compare(hashed, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
