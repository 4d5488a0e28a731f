package prompt

import (
	"strings"
)

// BasePrompt is prepended to every instruction sent to the image model.
const BasePrompt = "fotografía profesional de interiorismo, renderizado fotorrealista, iluminación natural, alta resolución, detalles nítidos"

// NegativePrompt lists the artifacts the model should steer away from.
const NegativePrompt = "borroso, desenfocado, distorsionado, deformado, renderizado poco realista, dibujo, caricatura, personas, animales, marca de agua, texto, logotipo, baja calidad"

const separator = ", "

// BuildPrompt joins the base prompt, the style prompt and an optional custom
// text. Blank parts are skipped so the result never ends with a separator.
func BuildPrompt(stylePrompt string, customPrompt ...string) string {
	parts := []string{BasePrompt}
	if s := strings.TrimSpace(stylePrompt); s != "" {
		parts = append(parts, s)
	}
	if len(customPrompt) > 0 {
		if c := strings.TrimSpace(customPrompt[0]); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, separator)
}
