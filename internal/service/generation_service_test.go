package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digkill/InteriorAI/internal/apperr"
	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/replicate"
)

type generationFixture struct {
	svc         *GenerationService
	profiles    *fakeProfiles
	generations *fakeGenerations
	model       *fakeModel
	store       *fakeStore
	notifier    *fakeNotifier
}

func newGenerationFixture(t *testing.T, profile models.Profile) *generationFixture {
	t.Helper()
	catalog, err := prompt.LoadCatalog()
	require.NoError(t, err)

	f := &generationFixture{
		profiles:    newFakeProfiles(profile),
		generations: newFakeGenerations(),
		model: &fakeModel{pred: &replicate.Prediction{
			ID:      "pred-1",
			Status:  replicate.StatusSucceeded,
			Outputs: []string{"https://replicate.delivery/out.png"},
		}},
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewGenerationService(config.Config{ModelTimeout: time.Minute}, discardLogger(), catalog, f.profiles, f.generations, f.model, f.store, f.notifier)
	return f
}

func validRequest() GenerateRequest {
	return GenerateRequest{
		UserID:       "user-1",
		RoomType:     "living_room",
		StyleID:      "scandinavian",
		CustomPrompt: "con muchas plantas",
		Image:        jpegHeader,
	}
}

func TestGenerateChargesOneCredit(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 3})

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)

	require.Equal(t, models.GenerationSucceeded, gen.Status)
	require.Equal(t, []string{"https://cdn.example.com/outputs/user-1/out.png"}, gen.OutputURLs)
	require.Equal(t, models.GenerationSucceeded, f.generations.status[gen.ID])
	require.Equal(t, 2, f.profiles.credits("user-1"))

	require.True(t, f.model.deadline)
	require.Contains(t, f.model.input.Prompt, "estilo escandinavo")
	require.True(t, strings.HasSuffix(f.model.input.Prompt, ", con muchas plantas"))
	require.Equal(t, prompt.NegativePrompt, f.model.input.NegativePrompt)
	require.Equal(t, []string{notify.TypeGenerationSuccess}, f.notifier.types())
}

func TestGenerateWithoutCreditsNeverCallsModel(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 0})

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrCreditsRequired)
	require.Nil(t, gen)
	require.Zero(t, f.model.calls)
	require.Zero(t, f.store.uploads)
	require.Empty(t, f.generations.created)
	require.Equal(t, 0, f.profiles.credits("user-1"))
}

func TestGenerateRejectsUnknownRoomAndStyle(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 3})

	req := validRequest()
	req.RoomType = "garage"
	_, err := f.svc.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRoomType)

	req = validRequest()
	req.StyleID = "vaporwave"
	_, err = f.svc.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrUnknownStyle)

	req = validRequest()
	req.Image = nil
	_, err = f.svc.Generate(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidImage)

	require.Zero(t, f.model.calls)
	require.Equal(t, 3, f.profiles.credits("user-1"))
}

func TestGenerateModelFailureKeepsCredits(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})
	modelErr := apperr.External("replicate", errors.New("prediction failed: NSFW content detected"))
	f.model.pred = &replicate.Prediction{ID: "pred-2", Status: replicate.StatusFailed}
	f.model.err = modelErr

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.Same(t, modelErr, err)
	require.Equal(t, models.GenerationFailed, gen.Status)
	require.Equal(t, models.GenerationFailed, f.generations.status[gen.ID])
	require.Empty(t, f.generations.outputs[gen.ID])
	require.Empty(t, f.store.persisted)
	require.Equal(t, 1, f.profiles.credits("user-1"))
	require.Equal(t, []string{notify.TypeGenerationFailure}, f.notifier.types())
}

func TestGeneratePersistFailureKeepsCredits(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})
	f.store.persistErr = errors.New("bucket unavailable")

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "persist output")
	require.Equal(t, models.GenerationFailed, f.generations.status[gen.ID])
	require.Contains(t, f.generations.reasons[gen.ID], "bucket unavailable")
	require.Equal(t, 1, f.profiles.credits("user-1"))
}

func TestGeneratePersistFailureRemovesEarlierOutputs(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})
	f.model.pred.Outputs = []string{"https://replicate.delivery/a.png", "https://replicate.delivery/b.png"}
	f.store.persistErr = errors.New("bucket unavailable")
	f.store.persistOK = 1

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.ErrorContains(t, err, "bucket unavailable")
	require.Equal(t, models.GenerationFailed, f.generations.status[gen.ID])
	require.Equal(t, []string{"https://cdn.example.com/outputs/user-1/a.png"}, f.store.removed)
	require.Equal(t, 1, f.profiles.credits("user-1"))
}

func TestGenerateRejectsNonImageUpload(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})

	for _, data := range [][]byte{nil, []byte("hello, not a picture"), []byte("<svg xmlns=\"http://www.w3.org/2000/svg\"></svg>")} {
		req := validRequest()
		req.Image = data
		_, err := f.svc.Generate(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidImage)
	}
	require.Zero(t, f.model.calls)
	require.Zero(t, f.store.uploads)
	require.Empty(t, f.generations.created)
}

func TestSniffImageAllowsPhotoFormats(t *testing.T) {
	webp := []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	for want, data := range map[string][]byte{"image/jpeg": jpegHeader, "image/png": pngHeader, "image/webp": webp} {
		got, err := SniffImage(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := SniffImage([]byte("GIF89a\x01\x00\x01\x00"))
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestGenerateUnlimitedIsNotCharged(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 0, HasPurchased: true})

	_, err := f.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	require.Zero(t, f.profiles.consumed)
}

func TestGenerateDeliversWhenBalanceRacedToZero(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})
	exhausted := false
	f.profiles.consumeOK = &exhausted

	gen, err := f.svc.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, models.GenerationSucceeded, gen.Status)
	require.ElementsMatch(t, []string{notify.TypeCreditWarning, notify.TypeGenerationSuccess}, f.notifier.types())
}

func TestConcurrentGenerationsNeverGoNegative(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 2})
	var fakeMu sync.Mutex
	svc := f.svc
	svc.generations = &lockedGenerations{inner: f.generations, mu: &fakeMu}
	svc.model = &lockedModel{inner: f.model, mu: &fakeMu}
	svc.store = &lockedStore{inner: f.store, mu: &fakeMu}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Generate(context.Background(), validRequest())
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, f.profiles.credits("user-1"), 0)
	require.Equal(t, 2, f.profiles.consumed)
}

func TestGetChecksOwnership(t *testing.T) {
	f := newGenerationFixture(t, models.Profile{ID: "user-1", Credits: 1})
	f.generations.byID["g1"] = &models.Generation{ID: "g1", UserID: "user-1"}

	gen, err := f.svc.Get(context.Background(), "user-1", "g1")
	require.NoError(t, err)
	require.Equal(t, "g1", gen.ID)

	_, err = f.svc.Get(context.Background(), "user-2", "g1")
	require.ErrorIs(t, err, ErrGenerationNotFound)

	_, err = f.svc.Get(context.Background(), "user-1", "missing")
	require.ErrorIs(t, err, ErrGenerationNotFound)
}

type lockedGenerations struct {
	inner GenerationStore
	mu    *sync.Mutex
}

func (l *lockedGenerations) Create(ctx context.Context, g *models.Generation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Create(ctx, g)
}

func (l *lockedGenerations) MarkSucceeded(ctx context.Context, id, p string, o []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.MarkSucceeded(ctx, id, p, o)
}

func (l *lockedGenerations) MarkFailed(ctx context.Context, id, p, r string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.MarkFailed(ctx, id, p, r)
}

func (l *lockedGenerations) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.GetByID(ctx, id)
}

func (l *lockedGenerations) ListByUser(ctx context.Context, u string, n int) ([]models.Generation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ListByUser(ctx, u, n)
}

type lockedModel struct {
	inner ImageModel
	mu    *sync.Mutex
}

func (l *lockedModel) Run(ctx context.Context, in replicate.Input) (*replicate.Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Run(ctx, in)
}

type lockedStore struct {
	inner *fakeStore
	mu    *sync.Mutex
}

func (l *lockedStore) Upload(ctx context.Context, folder string, data []byte, ct string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Upload(ctx, folder, data, ct)
}

func (l *lockedStore) Persist(ctx context.Context, folder, src string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Persist(ctx, folder, src)
}

func (l *lockedStore) Remove(ctx context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Remove(ctx, url)
}
