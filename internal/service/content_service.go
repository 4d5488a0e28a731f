package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/digkill/InteriorAI/internal/models"
	"github.com/digkill/InteriorAI/internal/repository"
)

// ContentService serves the editable text blocks of the public pages.
type ContentService struct {
	log      *slog.Logger
	repo     *repository.ContentRepository
	defaults map[string]string
}

func NewContentService(log *slog.Logger, repo *repository.ContentRepository) (*ContentService, error) {
	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	return &ContentService{log: log, repo: repo, defaults: seed.Content}, nil
}

// Seed inserts every default block that is not in the database yet.
func (s *ContentService) Seed(ctx context.Context) error {
	keys := make([]string, 0, len(s.defaults))
	for k := range s.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.repo.InsertMissing(ctx, k, s.defaults[k]); err != nil {
			return err
		}
	}
	return nil
}

// Blocks returns every block keyed by name, falling back to the defaults
// when the database is unavailable.
func (s *ContentService) Blocks(ctx context.Context) map[string]string {
	out := make(map[string]string, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn("load site content failed, using defaults", "err", err)
		return out
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out
}

func (s *ContentService) List(ctx context.Context) ([]models.SiteContent, error) {
	return s.repo.List(ctx)
}

func (s *ContentService) Update(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if _, ok := s.defaults[key]; !ok {
		existing, err := s.repo.Get(ctx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrUnknownContentKey
		}
	}
	return s.repo.Upsert(ctx, key, strings.TrimSpace(value))
}
