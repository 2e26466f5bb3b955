package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Password policy failures.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrPasswordNoNumber = errors.New("password must contain a number")
	ErrPasswordNoLetter = errors.New("password must contain a letter")
)

// ValidatePassword enforces the admin password policy.  72 bytes is the
// bcrypt input limit.
func ValidatePassword(p string) error {
	if len([]rune(p)) < 8 {
		return ErrPasswordTooShort
	}
	if len(p) > 72 {
		return ErrPasswordTooLong
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	if !digit {
		return ErrPasswordNoNumber
	}
	if !letter {
		return ErrPasswordNoLetter
	}
	return nil
}
