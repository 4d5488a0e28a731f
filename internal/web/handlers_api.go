package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/digkill/InteriorAI/internal/notify"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleActivity returns one fresh social-proof entry. Every response is
// generated per request and must never be cached.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, s.deps.Activity.Next())
}

func (s *Server) handleNotifyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"webhook_configured": s.deps.Discord != nil && s.deps.Discord.IsDiscordConfigured(),
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var p notify.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&p); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("invalid payload: %v", err)})
		return
	}
	if p.Type == "" {
		p.Type = notify.TypeCustom
	}
	if s.deps.Discord == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "discord webhook URL is not configured"})
		return
	}

	res := s.deps.Discord.SendDiscordNotification(r.Context(), p)
	if !res.Success {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": res.Error})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
