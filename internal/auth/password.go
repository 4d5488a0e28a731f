package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AdminCredentials checks the single admin account. A bcrypt hash wins over
// the plain password, which is only meant for local development.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
}

func (c AdminCredentials) Configured() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "")
}

func (c AdminCredentials) Check(username, password string) bool {
	if !c.Configured() || password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	var passOK bool
	if c.PasswordHash != "" {
		passOK = CheckPasswordHash(password, c.PasswordHash)
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return userOK && passOK
}
