package utils

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OneTimePasswordLen is the length of generated first-login passwords.
const OneTimePasswordLen = 8

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by HashPassword for input over MaxPasswordBytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
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

// NewOneTimePassword returns a short opaque password handed to an admin for
// out-of-band delivery: the last eight hex digits of a random UUID.
func NewOneTimePassword() string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[len(s)-OneTimePasswordLen:]
}
