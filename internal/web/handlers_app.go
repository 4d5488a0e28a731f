package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/service"
)

const historyLimit = 12

type dashboardPage struct {
	page
	ShowWelcome bool
	Credits     int
	Unlimited   bool
	CanGenerate bool
	Error       string
	Rooms       []prompt.RoomType
	Styles      []prompt.Style
	History     []models.Generation
}

// profile loads the signed-in user's profile. A session whose profile is gone
// is cleared and sent back to the login page; the bool reports whether the
// caller may continue.
func (s *Server) profile(w http.ResponseWriter, r *http.Request) (*models.Profile, bool) {
	user := userFromContext(r.Context())
	p, err := s.deps.Users.Get(r.Context(), user.ID)
	if err == nil {
		return p, true
	}
	if errors.Is(err, service.ErrProfileNotFound) {
		s.deps.Sessions.Clear(w, auth.UserCookie)
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		} else {
			http.Redirect(w, r, "/login", http.StatusFound)
		}
		return nil, false
	}
	s.log.Error("load profile", "user_id", user.ID, "err", err)
	writeError(w, r, http.StatusInternalServerError, "internal error")
	return nil, false
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := s.profile(w, r)
	if !ok {
		return
	}
	s.renderDashboard(w, r, http.StatusOK, p, "")
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, p *models.Profile, errMsg string) {
	history, err := s.deps.Generations.History(r.Context(), p.ID, historyLimit)
	if err != nil {
		s.log.Error("load history", "user_id", p.ID, "err", err)
	}
	catalog := s.deps.Generations.Catalog()

	data := dashboardPage{
		page:        s.page(r, "Panel"),
		ShowWelcome: s.deps.Users.OnboardingRequired(r.Context(), p.ID),
		Credits:     p.Credits,
		Unlimited:   s.deps.Generations.IsUnlimited(p),
		CanGenerate: s.deps.Generations.CanGenerate(p),
		Error:       errMsg,
		Rooms:       catalog.Rooms,
		Styles:      catalog.Styles,
		History:     history,
	}
	if err := s.views.render(w, status, "dashboard.html", data); err != nil {
		s.log.Error("render dashboard", "err", err)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.generateFailed(w, r, http.StatusRequestEntityTooLarge, "La imagen es demasiado grande.", nil)
			return
		}
		s.generateFailed(w, r, http.StatusBadRequest, "Formulario no válido.", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		s.generateFailed(w, r, http.StatusBadRequest, "Sube una foto de la habitación.", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.generateFailed(w, r, http.StatusBadRequest, "No se pudo leer la imagen.", nil)
		return
	}
	if int64(len(data)) > limit {
		s.generateFailed(w, r, http.StatusRequestEntityTooLarge, "La imagen es demasiado grande.", nil)
		return
	}

	if _, err := service.SniffImage(data); err != nil {
		status, msg := generationStatus(err)
		s.generateFailed(w, r, status, msg, nil)
		return
	}

	gen, err := s.deps.Generations.Generate(r.Context(), service.GenerateRequest{
		UserID:       user.ID,
		RoomType:     r.FormValue("room_type"),
		StyleID:      r.FormValue("style"),
		CustomPrompt: strings.TrimSpace(r.FormValue("custom_prompt")),
		Image:        data,
	})
	if err != nil {
		status, msg := generationStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("generation failed", "user_id", user.ID, "err", err)
		}
		s.generateFailed(w, r, status, msg, gen)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, gen)
		return
	}
	http.Redirect(w, r, "/generations/"+gen.ID, http.StatusSeeOther)
}

// generateFailed reports a failed generation: JSON callers get the status
// and message, browsers get the dashboard again with the message shown.
func (s *Server) generateFailed(w http.ResponseWriter, r *http.Request, status int, msg string, gen *models.Generation) {
	if wantsJSON(r) {
		body := map[string]any{"error": msg}
		if gen != nil {
			body["generation"] = gen
		}
		writeJSON(w, status, body)
		return
	}
	p, ok := s.profile(w, r)
	if !ok {
		return
	}
	s.renderDashboard(w, r, status, p, msg)
}

type generationPage struct {
	page
	Generation *models.Generation
}

func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	gen, err := s.deps.Generations.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrGenerationNotFound) {
			writeError(w, r, http.StatusNotFound, "generation not found")
			return
		}
		s.log.Error("load generation", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, gen)
		return
	}
	data := generationPage{page: s.page(r, "Diseño"), Generation: gen}
	if err := s.views.render(w, http.StatusOK, "generation.html", data); err != nil {
		s.log.Error("render generation", "err", err)
	}
}

type onboardingRequest struct {
	Choice string `json:"choice"`
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req onboardingRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	} else {
		req.Choice = r.FormValue("choice")
	}

	next, err := s.deps.Users.CompleteOnboarding(r.Context(), user.ID, req.Choice)
	if err != nil {
		if errors.Is(err, service.ErrInvalidChoice) {
			writeError(w, r, http.StatusBadRequest, "invalid choice")
			return
		}
		s.log.Error("complete onboarding", "user_id", user.ID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"next": next})
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

type plansPage struct {
	page
	Plans []models.Plan
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.ListActive(r.Context())
	if err != nil {
		s.log.Error("list plans", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, plans)
		return
	}
	if err := s.views.render(w, http.StatusOK, "plans.html", plansPage{page: s.page(r, "Planes"), Plans: plans}); err != nil {
		s.log.Error("render plans", "err", err)
	}
}

type meResponse struct {
	Profile            *models.Profile `json:"profile"`
	Unlimited          bool            `json:"unlimited"`
	CanGenerate        bool            `json:"can_generate"`
	OnboardingRequired bool            `json:"onboarding_required"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := s.profile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Profile:            p,
		Unlimited:          s.deps.Generations.IsUnlimited(p),
		CanGenerate:        s.deps.Generations.CanGenerate(p),
		OnboardingRequired: s.deps.Users.OnboardingRequired(r.Context(), p.ID),
	})
}
