package web

import (
	"net/http"

	"github.com/digkill/InteriorAI/internal/attribution"
	"github.com/digkill/InteriorAI/internal/auth"
)

type page struct {
	Title   string
	Email   string
	Content map[string]string
}

func (s *Server) page(r *http.Request, title string) page {
	p := page{Title: title, Content: s.deps.Content.Blocks(r.Context())}
	if user := userFromContext(r.Context()); user != nil {
		p.Email = user.Email
	}
	return p
}

type loginPage struct {
	page
	Failed        bool
	ProviderReady bool
	Next          string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Sessions.User(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.renderLogin(w, r, http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Sessions.User(r); err == nil {
		http.Redirect(w, r, auth.SafeNext(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	s.renderLogin(w, r, http.StatusOK)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int) {
	data := loginPage{
		page:          s.page(r, "Inicia sesión"),
		Failed:        r.URL.Query().Get("error") == "auth_failed",
		ProviderReady: s.deps.Provider != nil,
		Next:          auth.SafeNext(r.URL.Query().Get("next")),
	}
	if err := s.views.render(w, status, "login.html", data); err != nil {
		s.log.Error("render login", "err", err)
	}
}

// handleAuthStart begins the PKCE flow and hands the browser to the provider.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Provider == nil {
		s.authFailed(w, r, "auth provider not configured", nil)
		return
	}

	verifier, challenge, err := auth.NewPKCE()
	if err != nil {
		s.authFailed(w, r, "pkce", err)
		return
	}
	if err := s.deps.Sessions.SetPKCE(w, verifier, auth.SafeNext(r.URL.Query().Get("next"))); err != nil {
		s.authFailed(w, r, "store pkce", err)
		return
	}
	http.Redirect(w, r, s.deps.Provider.AuthorizeURL(s.cfg.PublicBaseURL+"/callback", challenge), http.StatusFound)
}

// handleCallback exchanges the authorization code for a session. Any failure
// sends the browser back to the login page with error=auth_failed.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Provider == nil {
		s.authFailed(w, r, "auth provider not configured", nil)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.authFailed(w, r, "missing code", nil)
		return
	}
	verifier, next, err := s.deps.Sessions.PKCE(r)
	if err != nil {
		s.authFailed(w, r, "pkce cookie", err)
		return
	}
	s.deps.Sessions.Clear(w, auth.PKCECookie)
	if q := r.URL.Query().Get("next"); q != "" {
		next = q
	}

	identity, err := s.deps.Provider.Exchange(r.Context(), code, verifier)
	if err != nil {
		s.authFailed(w, r, "code exchange", err)
		return
	}

	var attr *attribution.Attribution
	if a, ok := attribution.FromContext(r.Context()); ok {
		attr = &a
	}
	profile, created, err := s.deps.Users.Ensure(r.Context(), *identity, attr)
	if err != nil {
		s.authFailed(w, r, "ensure profile", err)
		return
	}

	if err := s.deps.Sessions.SetUser(w, auth.SessionUser{ID: profile.ID, Email: identity.Email}); err != nil {
		s.authFailed(w, r, "set session", err)
		return
	}
	s.log.Info("user signed in", "user_id", profile.ID, "new_profile", created)
	http.Redirect(w, r, auth.CallbackRedirect(next, identity.CreatedAt, s.now()), http.StatusFound)
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, step string, err error) {
	s.log.Warn("sign in failed", "step", step, "err", err)
	http.Redirect(w, r, "/login?error=auth_failed", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.Clear(w, auth.UserCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
