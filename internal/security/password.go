package security

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// FederatedPasswordHash returns a bcrypt hash of random bytes. Social-login
// accounts carry it as a password that can never match, so they cannot be
// logged into with a local password.
func FederatedPasswordHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(b)), bcrypt.DefaultCost)
	return string(h), err
}
