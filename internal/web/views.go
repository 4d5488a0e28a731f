package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login.html", "dashboard.html", "generation.html", "plans.html"}

// views caches one template set per page, each parsed together with the
// shared layout.
type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	funcs := template.FuncMap{
		"price": formatPrice,
		"date": func(t time.Time) string {
			return t.Format("02/01/2006 15:04")
		},
	}

	v := &views{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		v.pages[page] = tpl
	}
	return v, nil
}

// render buffers the output so a template error never leaves a half-written
// page behind.
func (v *views) render(w http.ResponseWriter, status int, page string, data any) error {
	tpl, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("template %s not found", page)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func formatPrice(minorUnits int, currency string) string {
	return fmt.Sprintf("%d,%02d %s", minorUnits/100, minorUnits%100, currency)
}
