package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"

	"github.com/digkill/InteriorAI/internal/apperr"
	"github.com/digkill/InteriorAI/internal/config"
)

var ErrProviderNotConfigured = errors.New("auth provider is not configured")

// Identity is what the hosted auth provider tells us about a signed-in user.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

type Provider interface {
	AuthorizeURL(redirectTo, challenge string) string
	Exchange(ctx context.Context, code, verifier string) (*Identity, error)
}

type tokenExchanger interface {
	Token(req types.TokenRequest) (*types.TokenResponse, error)
}

// Supabase runs the OAuth PKCE flow against Supabase Auth.
type Supabase struct {
	baseURL  string
	provider string
	auth     tokenExchanger
}

func NewSupabase(cfg config.Config) (*Supabase, error) {
	if !cfg.SupabaseConfigured() {
		return nil, ErrProviderNotConfigured
	}
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{
		baseURL:  strings.TrimRight(cfg.SupabaseURL, "/"),
		provider: cfg.SupabaseProvider,
		auth:     client.Auth,
	}, nil
}

func (s *Supabase) AuthorizeURL(redirectTo, challenge string) string {
	q := url.Values{}
	q.Set("provider", s.provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "s256")
	return s.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// Exchange trades the authorization code for a session and returns the
// user it belongs to. The gotrue client takes no context, so ctx only bounds
// how long we wait.
func (s *Supabase) Exchange(ctx context.Context, code, verifier string) (*Identity, error) {
	if code == "" || verifier == "" {
		return nil, errors.New("missing code or verifier")
	}

	type result struct {
		resp *types.TokenResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.auth.Token(types.TokenRequest{GrantType: "pkce", Code: code, CodeVerifier: verifier})
		done <- result{resp, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, apperr.External("supabase", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, apperr.External("supabase", fmt.Errorf("exchange code: %w", res.err))
	}
	if res.resp == nil || res.resp.AccessToken == "" {
		return nil, apperr.External("supabase", errors.New("empty session in token response"))
	}

	user := res.resp.User
	return &Identity{
		UserID:      user.ID.String(),
		Email:       user.Email,
		DisplayName: metadataString(user.UserMetadata, "full_name", "name"),
		AvatarURL:   metadataString(user.UserMetadata, "avatar_url", "picture"),
		CreatedAt:   user.CreatedAt,
	}, nil
}

func metadataString(meta map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
