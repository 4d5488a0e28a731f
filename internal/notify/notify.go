// Package notify fans operational events out to chat webhooks. Delivery is
// best effort: failures are logged and counted, never returned to the
// request that produced the event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/digkill/InteriorAI/internal/metrics"
)

const (
	TypeSignup            = "signup"
	TypeGenerationSuccess = "generation_succeeded"
	TypeGenerationFailure = "generation_failed"
	TypeCreditWarning     = "credit_warning"
	TypeBroadcast         = "broadcast"
	TypeCustom            = "custom"
)

type Payload struct {
	Type   string         `json:"type"`
	Title  string         `json:"title,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Result is the outcome of one delivery attempt.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Sink interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, p Payload) Result
}

type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sinks: sinks, timeout: timeout, log: log}
}

// Discord returns the Discord sink when one was registered.
func (d *Dispatcher) Discord() *Discord {
	for _, s := range d.sinks {
		if dc, ok := s.(*Discord); ok {
			return dc
		}
	}
	return nil
}

// Dispatch delivers p in the background, detached from the caller's context.
func (d *Dispatcher) Dispatch(p Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.Send(ctx, p)
	}()
}

// Send delivers p to every configured sink and returns the per-sink results.
func (d *Dispatcher) Send(ctx context.Context, p Payload) map[string]Result {
	results := make(map[string]Result, len(d.sinks))
	for _, s := range d.sinks {
		if !s.Configured() {
			continue
		}
		res := s.Send(ctx, p)
		results[s.Name()] = res
		metrics.RecordNotification(s.Name(), res.Success)
		if !res.Success && d.log != nil {
			d.log.Warn("notification failed", "sink", s.Name(), "type", p.Type, "err", res.Error)
		}
	}
	return results
}

// Wait blocks until in-flight background dispatches finish or ctx expires.
func (d *Dispatcher) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// title falls back to a readable form of the event type.
func (p Payload) title() string {
	if p.Title != "" {
		return p.Title
	}
	switch p.Type {
	case TypeSignup:
		return "Nuevo registro"
	case TypeGenerationSuccess:
		return "Generación completada"
	case TypeGenerationFailure:
		return "Generación fallida"
	case TypeCreditWarning:
		return "Aviso de créditos"
	case TypeBroadcast:
		return "Mensaje del equipo"
	}
	if p.Type == "" {
		return "Notificación"
	}
	return strings.ReplaceAll(p.Type, "_", " ")
}

// sortedFields renders fields in a stable order.
func (p Payload) sortedFields() [][2]string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, fmt.Sprint(p.Fields[k])})
	}
	return out
}
