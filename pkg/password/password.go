// Package password hashes and checks account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength is the shortest accepted password.
	MinLength = 6
	// MaxLength is bcrypt's input limit in bytes.
	MaxLength = 72
)

var (
	ErrTooShort = fmt.Errorf("password must be at least %d characters long", MinLength)
	ErrTooLong  = fmt.Errorf("password must be at most %d bytes long", MaxLength)
)

// Validate checks the length policy without hashing.
func Validate(plain string) error {
	switch {
	case len(plain) < MinLength:
		return ErrTooShort
	case len(plain) > MaxLength:
		return ErrTooLong
	}
	return nil
}

// Hash validates plain and returns its bcrypt hash.
func Hash(plain string) (string, error) {
	if err := Validate(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Matches reports whether plain is the password behind hashed.
// A malformed hash never matches.
func Matches(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// IsPolicyError reports whether err came from Validate.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrTooShort) || errors.Is(err, ErrTooLong)
}
