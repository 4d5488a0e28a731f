package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/digkill/InteriorAI/internal/config"
)

const (
	UserCookie  = "ia_session"
	AdminCookie = "ia_admin"
	PKCECookie  = "ia_pkce"

	RoleUser  = "user"
	RoleAdmin = "admin"
	rolePKCE  = "pkce"

	issuer  = "interiorai"
	pkceTTL = 10 * time.Minute
)

var (
	ErrNoSession   = errors.New("no session")
	ErrWrongRole   = errors.New("session role mismatch")
	ErrEmptySecret = errors.New("session secret is empty")
)

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	// Next and Verifier are only set on the short-lived PKCE cookie.
	Next     string `json:"next,omitempty"`
	Verifier string `json:"verifier,omitempty"`
	jwt.RegisteredClaims
}

type SessionUser struct {
	ID    string
	Email string
}

// Sessions issues and verifies the HS256 cookies for users, the admin and the
// in-flight OAuth handshake.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessions(cfg config.Config) *Sessions {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Sessions{
		secret: []byte(cfg.SessionSecret),
		ttl:    ttl,
		secure: cfg.CookieSecure,
		now:    time.Now,
	}
}

func (s *Sessions) sign(claims *Claims, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrEmptySecret
	}
	now := s.now()
	claims.RegisteredClaims.Issuer = issuer
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks that it was issued for role.
func (s *Sessions) Verify(tokenString, role string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrInvalidKey
	}
	if claims.Role != role {
		return nil, ErrWrongRole
	}
	return claims, nil
}

func (s *Sessions) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  s.now().Add(ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) read(r *http.Request, name, role string) (*Claims, error) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	return s.Verify(c.Value, role)
}

func (s *Sessions) SetUser(w http.ResponseWriter, user SessionUser) error {
	token, err := s.sign(&Claims{
		Role:             RoleUser,
		Email:            user.Email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	}, s.ttl)
	if err != nil {
		return err
	}
	s.setCookie(w, UserCookie, token, s.ttl)
	return nil
}

func (s *Sessions) User(r *http.Request) (*SessionUser, error) {
	claims, err := s.read(r, UserCookie, RoleUser)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrNoSession
	}
	return &SessionUser{ID: claims.Subject, Email: claims.Email}, nil
}

func (s *Sessions) SetAdmin(w http.ResponseWriter, username string) error {
	token, err := s.sign(&Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: username},
	}, s.ttl)
	if err != nil {
		return err
	}
	s.setCookie(w, AdminCookie, token, s.ttl)
	return nil
}

// IsAdminAuthenticated reports whether r carries a valid admin session.
func (s *Sessions) IsAdminAuthenticated(r *http.Request) bool {
	_, err := s.read(r, AdminCookie, RoleAdmin)
	return err == nil
}

// SetPKCE remembers the verifier and post-login target for the callback.
func (s *Sessions) SetPKCE(w http.ResponseWriter, verifier, next string) error {
	token, err := s.sign(&Claims{Role: rolePKCE, Verifier: verifier, Next: next}, pkceTTL)
	if err != nil {
		return err
	}
	s.setCookie(w, PKCECookie, token, pkceTTL)
	return nil
}

func (s *Sessions) PKCE(r *http.Request) (verifier, next string, err error) {
	claims, err := s.read(r, PKCECookie, rolePKCE)
	if err != nil {
		return "", "", err
	}
	return claims.Verifier, claims.Next, nil
}
