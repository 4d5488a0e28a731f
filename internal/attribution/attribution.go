// Package attribution records where a visitor first came from (UTM tags,
// referrer, device) in a long-lived cookie so signups can be credited to a
// campaign.
package attribution

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	CookieName = "ia_attribution"
	MaxAge     = 30 * 24 * time.Hour
)

type Attribution struct {
	Source      string    `json:"source,omitempty"`
	Medium      string    `json:"medium,omitempty"`
	Campaign    string    `json:"campaign,omitempty"`
	Term        string    `json:"term,omitempty"`
	Content     string    `json:"content,omitempty"`
	Device      string    `json:"device"`
	Referrer    string    `json:"referrer,omitempty"`
	LandingPath string    `json:"landing_path"`
	FirstTouch  time.Time `json:"first_touch"`
}

// Fields flattens the attribution for notifications.
func (a Attribution) Fields() map[string]any {
	fields := map[string]any{
		"device":  a.Device,
		"landing": a.LandingPath,
	}
	for k, v := range map[string]string{
		"utm_source":   a.Source,
		"utm_medium":   a.Medium,
		"utm_campaign": a.Campaign,
		"utm_term":     a.Term,
		"utm_content":  a.Content,
		"referrer":     a.Referrer,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// Capture extracts attribution from a landing request. It reports false when
// the request carries neither UTM tags nor an external referrer.
func Capture(r *http.Request, now time.Time) (Attribution, bool) {
	q := r.URL.Query()
	a := Attribution{
		Source:      clean(q.Get("utm_source")),
		Medium:      clean(q.Get("utm_medium")),
		Campaign:    clean(q.Get("utm_campaign")),
		Term:        clean(q.Get("utm_term")),
		Content:     clean(q.Get("utm_content")),
		Device:      DetectDevice(r.UserAgent()),
		Referrer:    externalReferrer(r),
		LandingPath: r.URL.Path,
		FirstTouch:  now.UTC(),
	}
	hasUTM := a.Source != "" || a.Medium != "" || a.Campaign != "" || a.Term != "" || a.Content != ""
	if !hasUTM && a.Referrer == "" {
		return Attribution{}, false
	}
	return a, true
}

// FromRequest decodes the attribution cookie. Expired or malformed cookies
// read as absent.
func FromRequest(r *http.Request, now time.Time) (Attribution, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Attribution{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return Attribution{}, false
	}
	var a Attribution
	if err := json.Unmarshal(raw, &a); err != nil {
		return Attribution{}, false
	}
	if a.FirstTouch.IsZero() || a.FirstTouch.After(now) || now.Sub(a.FirstTouch) > MaxAge {
		return Attribution{}, false
	}
	return a, true
}

func encode(a Attribution) string {
	raw, _ := json.Marshal(a)
	return base64.RawURLEncoding.EncodeToString(raw)
}

type contextKey struct{}

func WithContext(ctx context.Context, a Attribution) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Attribution, bool) {
	a, ok := ctx.Value(contextKey{}).(Attribution)
	return a, ok
}

// Middleware stores first-touch attribution. A valid cookie is never
// overwritten, so later campaigns do not steal credit.
func Middleware(secure bool, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := now()
			if a, ok := FromRequest(r, t); ok {
				next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), a)))
				return
			}
			if r.Method == http.MethodGet {
				if a, ok := Capture(r, t); ok {
					http.SetCookie(w, &http.Cookie{
						Name:     CookieName,
						Value:    encode(a),
						Path:     "/",
						Expires:  t.Add(MaxAge),
						MaxAge:   int(MaxAge.Seconds()),
						HttpOnly: true,
						Secure:   secure,
						SameSite: http.SameSiteLaxMode,
					})
					r = r.WithContext(WithContext(r.Context(), a))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func DetectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return "tablet"
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func externalReferrer(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	if strings.EqualFold(u.Host, r.Host) {
		return ""
	}
	return clean(u.Scheme + "://" + u.Host + u.Path)
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 200 {
		v = v[:200]
	}
	return v
}
