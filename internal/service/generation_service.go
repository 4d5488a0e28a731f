package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/metrics"
	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/replicate"
	"github.com/digkill/InteriorAI/internal/storage"
)

type ImageModel interface {
	Run(ctx context.Context, in replicate.Input) (*replicate.Prediction, error)
}

type Notifier interface {
	Dispatch(p notify.Payload)
}

type ProfileStore interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	ConsumeCredit(ctx context.Context, id string) (bool, error)
}

type GenerationStore interface {
	Create(ctx context.Context, g *models.Generation) error
	MarkSucceeded(ctx context.Context, id, predictionID string, outputURLs []string) error
	MarkFailed(ctx context.Context, id, predictionID, reason string) error
	GetByID(ctx context.Context, id string) (*models.Generation, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Generation, error)
}

type GenerationService struct {
	cfg         config.Config
	log         *slog.Logger
	catalog     *prompt.Catalog
	profiles    ProfileStore
	generations GenerationStore
	ledger      *Ledger
	model       ImageModel
	store       storage.Store
	notifier    Notifier
	now         func() time.Time
}

type GenerateRequest struct {
	UserID       string
	RoomType     string
	StyleID      string
	CustomPrompt string
	Image        []byte
}

func NewGenerationService(cfg config.Config, log *slog.Logger, catalog *prompt.Catalog, profiles ProfileStore, generations GenerationStore, model ImageModel, store storage.Store, notifier Notifier) *GenerationService {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 120 * time.Second
	}
	return &GenerationService{
		cfg:         cfg,
		log:         log,
		catalog:     catalog,
		profiles:    profiles,
		generations: generations,
		ledger:      NewLedger(cfg, profiles),
		model:       model,
		store:       store,
		notifier:    notifier,
		now:         time.Now,
	}
}

func (s *GenerationService) Catalog() *prompt.Catalog {
	return s.catalog
}

// Generate runs one submission end to end. Credits are checked before the
// model is called and charged only after the output has been persisted. A
// failed model call is returned as-is; nothing is retried.
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (*models.Generation, error) {
	room, err := s.catalog.ParseRoomType(req.RoomType)
	if err != nil {
		return nil, err
	}
	style, err := s.catalog.Style(req.StyleID)
	if err != nil {
		return nil, err
	}
	contentType, err := SniffImage(req.Image)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if !s.ledger.CanGenerate(profile) {
		return nil, ErrCreditsRequired
	}

	inputURL, err := s.store.Upload(ctx, "inputs/"+profile.ID, req.Image, contentType)
	if err != nil {
		return nil, fmt.Errorf("store input image: %w", err)
	}

	stylePrompt := prompt.StylePrompt(room, style)
	gen := &models.Generation{
		ID:             uuid.NewString(),
		UserID:         profile.ID,
		RoomType:       room.ID,
		StyleID:        style.ID,
		StylePrompt:    stylePrompt,
		CustomPrompt:   req.CustomPrompt,
		Prompt:         prompt.BuildPrompt(stylePrompt, req.CustomPrompt),
		NegativePrompt: prompt.NegativePrompt,
		InputURL:       inputURL,
		Status:         models.GenerationProcessing,
		CreatedAt:      s.now(),
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("record generation: %w", err)
	}

	modelCtx, cancel := context.WithTimeout(ctx, s.cfg.ModelTimeout)
	started := s.now()
	pred, err := s.model.Run(modelCtx, replicate.Input{
		ImageURL:       inputURL,
		Prompt:         gen.Prompt,
		NegativePrompt: gen.NegativePrompt,
	})
	cancel()
	modelTime := s.now().Sub(started)

	predictionID := ""
	if pred != nil {
		predictionID = pred.ID
	}
	gen.PredictionID = predictionID

	if err != nil {
		s.fail(ctx, gen, profile, err.Error(), modelTime)
		return gen, err
	}

	outputs := make([]string, 0, len(pred.Outputs))
	for _, src := range pred.Outputs {
		persisted, perr := s.store.Persist(ctx, "outputs/"+profile.ID, src)
		if perr != nil {
			err := fmt.Errorf("persist output: %w", perr)
			s.discard(ctx, gen, outputs)
			s.fail(ctx, gen, profile, err.Error(), modelTime)
			return gen, err
		}
		outputs = append(outputs, persisted)
	}

	// The request may be gone by now; the record must still be closed.
	bg := context.WithoutCancel(ctx)
	if err := s.generations.MarkSucceeded(bg, gen.ID, predictionID, outputs); err != nil {
		return gen, fmt.Errorf("record generation result: %w", err)
	}
	completed := s.now()
	gen.Status = models.GenerationSucceeded
	gen.OutputURLs = outputs
	gen.CompletedAt = &completed
	metrics.RecordGeneration(string(models.GenerationSucceeded), modelTime)

	if _, err := s.ledger.ConsumeCredit(bg, profile); err != nil {
		// The render is delivered either way; the balance stays at zero.
		s.log.Warn("credit not consumed after generation", "user_id", profile.ID, "generation_id", gen.ID, "err", err)
		if errors.Is(err, ErrCreditsExhausted) {
			s.notifier.Dispatch(notify.Payload{
				Type: notify.TypeCreditWarning,
				Fields: map[string]any{
					"user_id":       profile.ID,
					"generation_id": gen.ID,
					"detail":        "balance reached zero concurrently",
				},
			})
		}
	}

	s.notifier.Dispatch(notify.Payload{
		Type: notify.TypeGenerationSuccess,
		Fields: map[string]any{
			"user":          displayUser(profile),
			"room":          room.Label,
			"style":         style.Label,
			"generation_id": gen.ID,
			"seconds":       int(modelTime.Seconds()),
		},
	})
	s.log.Info("generation succeeded", "generation_id", gen.ID, "user_id", profile.ID, "outputs", len(outputs), "model_seconds", modelTime.Seconds())
	return gen, nil
}

func (s *GenerationService) fail(ctx context.Context, gen *models.Generation, profile *models.Profile, reason string, modelTime time.Duration) {
	gen.Status = models.GenerationFailed
	gen.Error = reason
	metrics.RecordGeneration(string(models.GenerationFailed), modelTime)

	if err := s.generations.MarkFailed(context.WithoutCancel(ctx), gen.ID, gen.PredictionID, reason); err != nil {
		s.log.Error("failed to record generation failure", "generation_id", gen.ID, "err", err)
	}
	s.log.Error("generation failed", "generation_id", gen.ID, "user_id", profile.ID, "err", reason)

	s.notifier.Dispatch(notify.Payload{
		Type: notify.TypeGenerationFailure,
		Fields: map[string]any{
			"user":          displayUser(profile),
			"generation_id": gen.ID,
			"error":         reason,
		},
	})
}

// discard removes outputs already copied to storage for a generation that
// did not complete. Failures are logged only.
func (s *GenerationService) discard(ctx context.Context, gen *models.Generation, urls []string) {
	bg := context.WithoutCancel(ctx)
	for _, u := range urls {
		if err := s.store.Remove(bg, u); err != nil {
			s.log.Warn("orphaned output not removed", "generation_id", gen.ID, "url", u, "err", err)
		}
	}
}

// Get returns a generation owned by userID.
func (s *GenerationService) Get(ctx context.Context, userID, id string) (*models.Generation, error) {
	gen, err := s.generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gen == nil || gen.UserID != userID {
		return nil, ErrGenerationNotFound
	}
	return gen, nil
}

func (s *GenerationService) History(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = 12
	}
	return s.generations.ListByUser(ctx, userID, limit)
}

func (s *GenerationService) CanGenerate(p *models.Profile) bool {
	return s.ledger.CanGenerate(p)
}

func (s *GenerationService) IsUnlimited(p *models.Profile) bool {
	return s.ledger.IsUnlimited(p)
}

func displayUser(p *models.Profile) string {
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}
