package web

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digkill/InteriorAI/internal/attribution"
	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fakeUsers struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	ensured  []auth.Identity
	attrs    []*attribution.Attribution
	ensureFn func(id auth.Identity) error
}

func newFakeUsers(profiles ...*models.Profile) *fakeUsers {
	u := &fakeUsers{profiles: map[string]*models.Profile{}}
	for _, p := range profiles {
		u.profiles[p.ID] = p
	}
	return u
}

func (u *fakeUsers) Ensure(_ context.Context, id auth.Identity, attr *attribution.Attribution) (*models.Profile, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ensureFn != nil {
		if err := u.ensureFn(id); err != nil {
			return nil, false, err
		}
	}
	u.ensured = append(u.ensured, id)
	u.attrs = append(u.attrs, attr)
	if p, ok := u.profiles[id.UserID]; ok {
		return p, false, nil
	}
	p := &models.Profile{ID: id.UserID, Email: id.Email, Credits: 3}
	u.profiles[id.UserID] = p
	return p, true, nil
}

func (u *fakeUsers) Get(_ context.Context, id string) (*models.Profile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.profiles[id]
	if !ok {
		return nil, service.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (u *fakeUsers) OnboardingRequired(_ context.Context, id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.profiles[id]
	return ok && !p.OnboardingCompleted
}

func (u *fakeUsers) CompleteOnboarding(_ context.Context, id, choice string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var next string
	switch choice {
	case service.ChoiceFree:
		next = "/dashboard"
	case service.ChoicePlans:
		next = "/plans"
	default:
		return "", service.ErrInvalidChoice
	}
	if p, ok := u.profiles[id]; ok {
		p.OnboardingCompleted = true
	}
	return next, nil
}

type fakeGenerations struct {
	mu       sync.Mutex
	catalog  *prompt.Catalog
	requests []service.GenerateRequest
	result   *models.Generation
	err      error
	stored   map[string]*models.Generation
	history  []models.Generation
}

func (g *fakeGenerations) Generate(_ context.Context, req service.GenerateRequest) (*models.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.result, g.err
}

func (g *fakeGenerations) Get(_ context.Context, userID, id string) (*models.Generation, error) {
	gen, ok := g.stored[id]
	if !ok || gen.UserID != userID {
		return nil, service.ErrGenerationNotFound
	}
	return gen, nil
}

func (g *fakeGenerations) History(context.Context, string, int) ([]models.Generation, error) {
	return g.history, nil
}

func (g *fakeGenerations) CanGenerate(p *models.Profile) bool { return p.Unlimited || p.Credits > 0 }

func (g *fakeGenerations) IsUnlimited(p *models.Profile) bool { return p.Unlimited }

func (g *fakeGenerations) Catalog() *prompt.Catalog { return g.catalog }

type fakePlans struct{ plans []models.Plan }

func (p fakePlans) ListActive(context.Context) ([]models.Plan, error) { return p.plans, nil }

type fakeContent struct{}

func (fakeContent) Blocks(context.Context) map[string]string {
	return map[string]string{
		"dashboard.welcome_title": "Bienvenido",
		"login.error":             "No hemos podido iniciar tu sesión",
		"footer.contact":          "hola@example.com",
	}
}

type fakeActivity struct{ calls int }

func (a *fakeActivity) Next() service.Activity {
	a.calls++
	return service.Activity{Name: "Lucía", City: "Madrid", Room: "Salón", Style: "Nórdico", MinutesAgo: a.calls}
}

type fakeDiscord struct {
	configured bool
	result     notify.Result
	sent       []notify.Payload
}

func (d *fakeDiscord) SendDiscordNotification(_ context.Context, p notify.Payload) notify.Result {
	d.sent = append(d.sent, p)
	return d.result
}

func (d *fakeDiscord) IsDiscordConfigured() bool { return d.configured }

type fakeProvider struct {
	identity *auth.Identity
	err      error
	codes    []string
	verifier string
}

func (p *fakeProvider) AuthorizeURL(redirectTo, challenge string) string {
	return "https://auth.example.com/authorize?redirect_to=" + redirectTo + "&code_challenge=" + challenge
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*auth.Identity, error) {
	p.codes = append(p.codes, code)
	p.verifier = verifier
	return p.identity, p.err
}

type testEnv struct {
	server      *Server
	handler     http.Handler
	sessions    *auth.Sessions
	users       *fakeUsers
	generations *fakeGenerations
	discord     *fakeDiscord
	activity    *fakeActivity
	provider    *fakeProvider
}

func testConfig() config.Config {
	return config.Config{
		ListenAddr:            ":0",
		PublicBaseURL:         "http://localhost:8080",
		SessionSecret:         "test-secret",
		SessionTTL:            time.Hour,
		MaxUploadBytes:        1 << 20,
		GenerateRatePerMinute: 600,
		GenerateBurst:         100,
		ModelTimeout:          time.Second,
	}
}

func newTestEnv(t *testing.T, profiles ...*models.Profile) *testEnv {
	t.Helper()
	catalog, err := prompt.LoadCatalog()
	require.NoError(t, err)

	cfg := testConfig()
	env := &testEnv{
		sessions:    auth.NewSessions(cfg),
		users:       newFakeUsers(profiles...),
		generations: &fakeGenerations{catalog: catalog, stored: map[string]*models.Generation{}},
		discord:     &fakeDiscord{},
		activity:    &fakeActivity{},
		provider:    &fakeProvider{},
	}

	srv, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Sessions:    env.sessions,
		Provider:    env.provider,
		Users:       env.users,
		Generations: env.generations,
		Plans:       fakePlans{plans: []models.Plan{{ID: 1, Title: "Básico", Currency: "EUR", PriceMinorUnits: 900, Credits: 20, IsActive: true}}},
		Content:     fakeContent{},
		Activity:    env.activity,
		Discord:     env.discord,
	})
	require.NoError(t, err)
	env.server = srv
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, e.sessions.SetUser(rec, auth.SessionUser{ID: userID, Email: userID + "@example.com"}))
	return findCookie(t, rec.Result().Cookies(), auth.UserCookie)
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "room.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/generate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
