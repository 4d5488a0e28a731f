package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RegistrationWindow is how recent an account must be for the callback to
// flag the login as a fresh signup.
const RegistrationWindow = 60 * time.Second

// NewPKCE returns a verifier and its S256 challenge.
func NewPKCE() (verifier, challenge string, err error) {
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return "", "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(data)
	return verifier, Challenge(verifier), nil
}

func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SafeNext keeps post-login redirects on this site.
func SafeNext(next string) string {
	const fallback = "/dashboard"
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

func RegisteredRecently(createdAt, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	age := now.Sub(createdAt)
	return age >= 0 && age < RegistrationWindow
}

// CallbackRedirect is where a successful code exchange sends the browser.
func CallbackRedirect(next string, createdAt, now time.Time) string {
	target := SafeNext(next)
	if !RegisteredRecently(createdAt, now) {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("registered", "true")
	u.RawQuery = q.Encode()
	return u.String()
}
