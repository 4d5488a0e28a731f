package admin

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/digkill/InteriorAI/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

type views struct {
	pages map[string]*template.Template
}

type loginData struct {
	Error    string
	Disabled bool
}

type dashboardData struct {
	Notice       string
	ProfileCount int
	StatusCounts map[models.GenerationStatus]int
	Recent       []models.Generation
	Profiles     []models.Profile
	Plans        []models.Plan
	Content      []models.SiteContent
}

func loadViews() (*views, error) {
	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	}
	v := &views{pages: map[string]*template.Template{}}
	for _, name := range []string{"login", "dashboard"} {
		tpl, err := template.New(name+".html").Funcs(funcs).ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse admin template %s: %w", name, err)
		}
		v.pages[name] = tpl
	}
	return v, nil
}

func (v *views) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := v.pages[name].Execute(&buf, data); err != nil {
		return fmt.Errorf("render admin %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
