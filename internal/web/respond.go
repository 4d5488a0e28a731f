package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/digkill/InteriorAI/internal/apperr"
	"github.com/digkill/InteriorAI/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError answers API callers with {"error": msg} and browsers with a
// plain error page.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	http.Error(w, msg, status)
}

// generationStatus maps a generation failure to an HTTP status and a message
// the user can act on.
func generationStatus(err error) (int, string) {
	var ext *apperr.ExternalError
	switch {
	case errors.Is(err, service.ErrInvalidRoomType):
		return http.StatusBadRequest, "Tipo de habitación no válido."
	case errors.Is(err, service.ErrUnknownStyle):
		return http.StatusBadRequest, "Estilo desconocido."
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "Sube una imagen JPG, PNG o WebP."
	case errors.Is(err, service.ErrCreditsRequired):
		return http.StatusPaymentRequired, "Has agotado tus créditos. Elige un plan para seguir generando."
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, "Perfil no encontrado."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "El modelo tardó demasiado en responder. Inténtalo de nuevo."
	case errors.As(err, &ext):
		return http.StatusBadGateway, ext.Error()
	default:
		return http.StatusInternalServerError, "No se pudo generar la imagen."
	}
}

func urlQueryEscape(s string) string {
	return url.QueryEscape(s)
}
