// Package crypt verifies administrator passwords. New hashes are bcrypt;
// thirteen-character DES crypt(3) hashes carried over from older installs
// are still accepted.
package crypt

import (
	"crypto/subtle"
	"strings"

	descrypt "github.com/digitive/crypt"
	"golang.org/x/crypto/bcrypt"
)

// DES returns crypt(3) of password with the two-character salt, or "" if the
// salt is unusable.
func DES(password, salt string) string {
	result, err := descrypt.Crypt(password, salt)
	if err != nil {
		return ""
	}
	return result
}

// IsBcrypt reports whether stored looks like a bcrypt hash.
func IsBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// Hash returns a bcrypt hash of password.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify checks password against a bcrypt or DES hash. An empty hash never
// matches.
func Verify(password, stored string) bool {
	switch {
	case stored == "":
		return false
	case IsBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case len(stored) == 13:
		computed := DES(password, stored[:2])
		return computed != "" && subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
	}
	return false
}
