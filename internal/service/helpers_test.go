package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"sync"

	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/replicate"
)

var (
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProfiles struct {
	mu        sync.Mutex
	profiles  map[string]*models.Profile
	consumed  int
	consumeOK *bool
	findErr   error
}

func newFakeProfiles(ps ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]*models.Profile{}}
	for i := range ps {
		p := ps[i]
		f.profiles[p.ID] = &p
	}
	return f
}

func (f *fakeProfiles) FindByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) ConsumeCredit(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeOK != nil {
		return *f.consumeOK, nil
	}
	p := f.profiles[id]
	if p == nil || p.Credits <= 0 {
		return false, nil
	}
	p.Credits--
	f.consumed++
	return true, nil
}

func (f *fakeProfiles) credits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[id].Credits
}

type fakeGenerations struct {
	created []models.Generation
	status  map[string]models.GenerationStatus
	outputs map[string][]string
	reasons map[string]string
	byID    map[string]*models.Generation
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{
		status:  map[string]models.GenerationStatus{},
		outputs: map[string][]string{},
		reasons: map[string]string{},
		byID:    map[string]*models.Generation{},
	}
}

func (f *fakeGenerations) Create(_ context.Context, g *models.Generation) error {
	f.created = append(f.created, *g)
	f.status[g.ID] = g.Status
	return nil
}

func (f *fakeGenerations) MarkSucceeded(_ context.Context, id, _ string, outputURLs []string) error {
	f.status[id] = models.GenerationSucceeded
	f.outputs[id] = outputURLs
	return nil
}

func (f *fakeGenerations) MarkFailed(_ context.Context, id, _, reason string) error {
	f.status[id] = models.GenerationFailed
	f.reasons[id] = reason
	return nil
}

func (f *fakeGenerations) GetByID(_ context.Context, id string) (*models.Generation, error) {
	return f.byID[id], nil
}

func (f *fakeGenerations) ListByUser(_ context.Context, userID string, limit int) ([]models.Generation, error) {
	var out []models.Generation
	for _, g := range f.created {
		if g.UserID == userID && len(out) < limit {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeModel struct {
	calls    int
	input    replicate.Input
	pred     *replicate.Prediction
	err      error
	deadline bool
}

func (f *fakeModel) Run(ctx context.Context, in replicate.Input) (*replicate.Prediction, error) {
	f.calls++
	f.input = in
	_, f.deadline = ctx.Deadline()
	return f.pred, f.err
}

// fakeStore fails Persist with persistErr once persistOK copies succeeded.
type fakeStore struct {
	uploads    int
	persisted  []string
	removed    []string
	persistErr error
	persistOK  int
}

func (f *fakeStore) Upload(_ context.Context, folder string, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("no data")
	}
	f.uploads++
	return "https://cdn.example.com/" + folder + "/in.jpg", nil
}

func (f *fakeStore) Persist(_ context.Context, folder, src string) (string, error) {
	if f.persistErr != nil && len(f.persisted) >= f.persistOK {
		return "", f.persistErr
	}
	f.persisted = append(f.persisted, src)
	return "https://cdn.example.com/" + folder + "/" + path.Base(src), nil
}

func (f *fakeStore) Remove(_ context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []notify.Payload
}

func (f *fakeNotifier) Dispatch(p notify.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.payloads {
		out = append(out, p.Type)
	}
	return out
}
