package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/InteriorAI/internal/attribution"
	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/metrics"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/service"
)

type Users interface {
	Ensure(ctx context.Context, id auth.Identity, attr *attribution.Attribution) (*models.Profile, bool, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	OnboardingRequired(ctx context.Context, id string) bool
	CompleteOnboarding(ctx context.Context, id, choice string) (string, error)
}

type Generations interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*models.Generation, error)
	Get(ctx context.Context, userID, id string) (*models.Generation, error)
	History(ctx context.Context, userID string, limit int) ([]models.Generation, error)
	CanGenerate(p *models.Profile) bool
	IsUnlimited(p *models.Profile) bool
	Catalog() *prompt.Catalog
}

type Plans interface {
	ListActive(ctx context.Context) ([]models.Plan, error)
}

type Content interface {
	Blocks(ctx context.Context) map[string]string
}

type Activity interface {
	Next() service.Activity
}

type Discord interface {
	SendDiscordNotification(ctx context.Context, p notify.Payload) notify.Result
	IsDiscordConfigured() bool
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the public site. Provider may be nil when
// hosted auth is not configured; login then fails with auth_failed.
type Deps struct {
	Sessions    *auth.Sessions
	Provider    auth.Provider
	Users       Users
	Generations Generations
	Plans       Plans
	Content     Content
	Activity    Activity
	Discord     Discord
	DB          Pinger
	Admin       http.Handler
}

type Server struct {
	cfg     config.Config
	log     *slog.Logger
	deps    Deps
	views   *views
	limiter *RateLimiter
	router  *chi.Mux
	now     func() time.Time
}

func NewServer(cfg config.Config, log *slog.Logger, deps Deps) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		deps:    deps,
		views:   v,
		limiter: NewRateLimiter(cfg.GenerateRatePerMinute, cfg.GenerateBurst, log),
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(attribution.Middleware(s.cfg.CookieSecure, nil))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.handleIndex)
	r.Get("/login", s.handleLogin)
	r.Get("/auth/start", s.handleAuthStart)
	r.Get("/callback", s.handleCallback)
	r.Post("/logout", s.handleLogout)

	r.Get("/api/activity", s.handleActivity)
	r.Get("/api/notify", s.handleNotifyStatus)
	r.Post("/api/notify", s.handleNotify)

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireUser)
		protected.Get("/dashboard", s.handleDashboard)
		protected.With(s.limiter.Handler).Post("/generate", s.handleGenerate)
		protected.Get("/generations/{id}", s.handleGeneration)
		protected.Post("/onboarding/complete", s.handleCompleteOnboarding)
		protected.Get("/plans", s.handlePlans)
		protected.Get("/api/me", s.handleMe)
	})

	if s.deps.Admin != nil {
		r.Mount("/admin", s.deps.Admin)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	// generous write timeout: /generate blocks on the image model
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.cfg.ModelTimeout + 60*time.Second,
	}

	s.limiter.StartCleanup(ctx, 10*time.Minute)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("web server listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web listen: %w", err)
	}
	return nil
}
