// Package admin serves the operator console mounted under /admin: content
// editing, plan catalogue, manual purchases and credit grants, and
// broadcasts to the ops chat channels.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/service"
)

type Users interface {
	List(ctx context.Context, limit, offset int) ([]models.Profile, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	GrantCredits(ctx context.Context, id string, delta int) error
	SetUnlimited(ctx context.Context, id string, unlimited bool) error
}

type Plans interface {
	List(ctx context.Context) ([]models.Plan, error)
	Create(ctx context.Context, input service.CreatePlanInput) (*models.Plan, error)
	Update(ctx context.Context, id int64, input service.UpdatePlanInput) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type Purchases interface {
	GrantPlan(ctx context.Context, userID string, planID int64, reference string) (*models.Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]models.Purchase, error)
}

type Content interface {
	List(ctx context.Context) ([]models.SiteContent, error)
	Update(ctx context.Context, key, value string) error
}

type Generations interface {
	ListRecent(ctx context.Context, limit int) ([]models.Generation, error)
	CountByStatus(ctx context.Context) (map[models.GenerationStatus]int, error)
}

type Broadcaster interface {
	Send(ctx context.Context, p notify.Payload) map[string]notify.Result
}

type Server struct {
	log         *slog.Logger
	sessions    *auth.Sessions
	credentials auth.AdminCredentials
	users       Users
	plans       Plans
	purchases   Purchases
	content     Content
	generations Generations
	broadcaster Broadcaster
	views       *views
	router      *chi.Mux
}

func NewServer(log *slog.Logger, sessions *auth.Sessions, credentials auth.AdminCredentials, users Users, plans Plans, purchases Purchases, content Content, generations Generations, broadcaster Broadcaster) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	s := &Server{
		log:         log,
		sessions:    sessions,
		credentials: credentials,
		users:       users,
		plans:       plans,
		purchases:   purchases,
		content:     content,
		generations: generations,
		broadcaster: broadcaster,
		views:       v,
		router:      r,
	}

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Group(func(protected chi.Router) {
		protected.Use(s.requireAdmin)
		protected.Get("/", s.handleDashboard)
		protected.Post("/broadcast", s.handleBroadcast)
		protected.Route("/content", func(r chi.Router) {
			r.Get("/", s.handleListContent)
			r.Post("/", s.handleUpdateContent)
		})
		protected.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleListPlans)
			r.Post("/", s.handleCreatePlan)
			r.Put("/{id}", s.handleUpdatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
		protected.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Post("/{id}/credits", s.handleGrantCredits)
			r.Post("/{id}/unlimited", s.handleSetUnlimited)
			r.Post("/{id}/purchases", s.handleGrantPlan)
		})
	})
	return s, nil
}

// ServeHTTP lets the public site mount the console.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.IsAdminAuthenticated(r) {
			if isJSON(r) {
				s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.sessions.IsAdminAuthenticated(r) {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	s.renderLogin(w, http.StatusOK, "")
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, msg string) {
	data := loginData{Error: msg, Disabled: !s.credentials.Configured()}
	if err := s.views.render(w, status, "login", data); err != nil {
		s.log.Error("render admin login", "err", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderLogin(w, http.StatusBadRequest, "Formulario no válido")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	if !s.credentials.Check(username, r.PostFormValue("password")) {
		s.log.Warn("admin login rejected", "username", username, "ip", r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, "Usuario o contraseña incorrectos")
		return
	}
	if err := s.sessions.SetAdmin(w, username); err != nil {
		s.internalError(w, err)
		return
	}
	s.log.Info("admin signed in", "username", username)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w, auth.AdminCookie)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardData{Notice: r.URL.Query().Get("notice")}

	var err error
	if data.ProfileCount, err = s.users.Count(ctx); err != nil {
		s.internalError(w, err)
		return
	}
	if data.StatusCounts, err = s.generations.CountByStatus(ctx); err != nil {
		s.internalError(w, err)
		return
	}
	if data.Recent, err = s.generations.ListRecent(ctx, 20); err != nil {
		s.internalError(w, err)
		return
	}
	if data.Profiles, err = s.users.List(ctx, 50, 0); err != nil {
		s.internalError(w, err)
		return
	}
	if data.Plans, err = s.plans.List(ctx); err != nil {
		s.internalError(w, err)
		return
	}
	if data.Content, err = s.content.List(ctx); err != nil {
		s.internalError(w, err)
		return
	}

	if err := s.views.render(w, http.StatusOK, "dashboard", data); err != nil {
		s.log.Error("render admin dashboard", "err", err)
	}
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// handleBroadcast pushes an operator message to every configured ops sink.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := bind(r, &req, func(f formValues) {
		req.Message = f.Get("message")
	}); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	results := s.broadcaster.Send(r.Context(), notify.Payload{
		Type:   notify.TypeBroadcast,
		Fields: map[string]any{"message": strings.TrimSpace(req.Message)},
	})
	count := 0
	for sink, res := range results {
		if !res.Success {
			s.log.Error("send broadcast", "sink", sink, "err", res.Error)
			continue
		}
		count++
	}

	s.respond(w, r, http.StatusOK, map[string]any{
		"sent":    count,
		"total":   len(results),
		"results": results,
	}, "broadcast")
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.content.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, blocks)
}

type contentRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := bind(r, &req, func(f formValues) {
		req.Key = f.Get("key")
		req.Value = f.Get("value")
	}); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.content.Update(r.Context(), req.Key, req.Value); err != nil {
		if errors.Is(err, service.ErrUnknownContentKey) {
			s.badRequest(w, err)
			return
		}
		s.internalError(w, err)
		return
	}
	s.respond(w, r, http.StatusOK, req, "content")
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	input := service.CreatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		IsActive:        req.IsActive,
	}
	plan, err := s.plans.Create(r.Context(), input)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req planUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	input := service.UpdatePlanInput{
		Title:           req.Title,
		Description:     req.Description,
		Currency:        req.Currency,
		PriceMinorUnits: req.PriceMinorUnits,
		Credits:         req.Credits,
		IsActive:        req.IsActive,
	}
	plan, err := s.plans.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		s.badRequest(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.plans.Delete(r.Context(), id); err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	profiles, err := s.users.List(r.Context(), limit, offset)
	if err != nil {
		s.internalError(w, err)
		return
	}
	total, err := s.users.Count(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles, "total": total})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.userError(w, err)
		return
	}
	purchases, err := s.purchases.ListByUser(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "purchases": purchases})
}

type creditsRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	var formErr error
	if err := bind(r, &req, func(f formValues) {
		req.Delta, formErr = strconv.Atoi(strings.TrimSpace(f.Get("delta")))
	}); err != nil || formErr != nil {
		http.Error(w, "invalid delta", http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		http.Error(w, "delta must not be zero", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.users.GrantCredits(r.Context(), id, req.Delta); err != nil {
		s.userError(w, err)
		return
	}
	s.log.Info("admin adjusted credits", "user_id", id, "delta", req.Delta)
	s.respond(w, r, http.StatusOK, map[string]any{"user_id": id, "delta": req.Delta}, "credits")
}

type unlimitedRequest struct {
	Unlimited bool `json:"unlimited"`
}

func (s *Server) handleSetUnlimited(w http.ResponseWriter, r *http.Request) {
	var req unlimitedRequest
	if err := bind(r, &req, func(f formValues) {
		req.Unlimited, _ = strconv.ParseBool(f.Get("unlimited"))
	}); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.users.SetUnlimited(r.Context(), id, req.Unlimited); err != nil {
		s.userError(w, err)
		return
	}
	s.log.Info("admin set unlimited", "user_id", id, "unlimited", req.Unlimited)
	s.respond(w, r, http.StatusOK, map[string]any{"user_id": id, "unlimited": req.Unlimited}, "unlimited")
}

type grantPlanRequest struct {
	PlanID    int64  `json:"plan_id"`
	Reference string `json:"reference"`
}

func (s *Server) handleGrantPlan(w http.ResponseWriter, r *http.Request) {
	var req grantPlanRequest
	var formErr error
	if err := bind(r, &req, func(f formValues) {
		req.PlanID, formErr = parseID(f.Get("plan_id"))
		req.Reference = f.Get("reference")
	}); err != nil || formErr != nil {
		http.Error(w, "invalid plan_id", http.StatusBadRequest)
		return
	}

	purchase, err := s.purchases.GrantPlan(r.Context(), chi.URLParam(r, "id"), req.PlanID, req.Reference)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		s.userError(w, err)
		return
	}
	s.respond(w, r, http.StatusCreated, purchase, "purchase")
}

func (s *Server) userError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrProfileNotFound) {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	s.internalError(w, err)
}

// respond answers JSON callers with v and sends form posts back to the
// dashboard with a notice.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, notice string) {
	if isJSON(r) {
		s.writeJSON(w, status, v)
		return
	}
	http.Redirect(w, r, "/admin?notice="+notice, http.StatusSeeOther)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

type formValues interface {
	Get(key string) string
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// bind decodes a JSON body into dst, or hands the parsed form to fromForm.
func bind(r *http.Request, dst any, fromForm func(formValues)) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostForm)
	return nil
}

type planRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Currency        string `json:"currency"`
	PriceMinorUnits int    `json:"price_minor_units"`
	Credits         int    `json:"credits"`
	IsActive        *bool  `json:"is_active"`
}

type planUpdateRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	IsActive        *bool   `json:"is_active"`
}
