package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hyperlearn/internal/domain"
	"hyperlearn/internal/repository"
)

// ContentRepository holds the tutorial catalog and per-tutorial progress.
type ContentRepository interface {
	ListTutorials(ctx context.Context, filter string) ([]domain.Tutorial, error)
	GetTutorial(ctx context.Context, id string) (*domain.Tutorial, error)
	GetProgress(ctx context.Context, tutorialID string) (domain.Progress, error)
	UpdateProgress(ctx context.Context, tutorialID string, partial domain.Progress) (domain.Progress, error)
	InitializeCatalogIfAbsent(ctx context.Context, seed []domain.Tutorial) (bool, error)
	ReplaceCatalog(ctx context.Context, tutorials []domain.Tutorial) error
}

type contentRepository struct {
	records *repository.Records
	opts    options
	mu      sync.Mutex
}

func NewContentRepository(store repository.KeyValueStore, opts ...Option) ContentRepository {
	o := buildOptions(opts)
	return &contentRepository{
		records: repository.NewRecords(store, o.logger),
		opts:    o,
	}
}

func (r *contentRepository) loadCatalog(ctx context.Context) ([]domain.Tutorial, error) {
	var catalog []domain.Tutorial
	if _, err := r.records.Load(ctx, repository.KeyCatalog, &catalog, func() {
		catalog = nil
	}); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (r *contentRepository) ListTutorials(ctx context.Context, filter string) ([]domain.Tutorial, error) {
	catalog, err := r.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(filter)
	out := make([]domain.Tutorial, 0, len(catalog))
	for _, t := range catalog {
		if matchesFilter(t, query) {
			out = append(out, t)
		}
	}
	return out, nil
}

func matchesFilter(t domain.Tutorial, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Title), query) {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(t.Tags, " ")), query)
}

func (r *contentRepository) GetTutorial(ctx context.Context, id string) (*domain.Tutorial, error) {
	catalog, err := r.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range catalog {
		if catalog[i].ID == id {
			t := catalog[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTutorialNotFound, id)
}

func (r *contentRepository) loadProgress(ctx context.Context) (map[string]domain.Progress, error) {
	all := map[string]domain.Progress{}
	if _, err := r.records.Load(ctx, repository.KeyProgress, &all, func() {
		all = map[string]domain.Progress{}
	}); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]domain.Progress{}
	}
	return all, nil
}

func (r *contentRepository) GetProgress(ctx context.Context, tutorialID string) (domain.Progress, error) {
	all, err := r.loadProgress(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Progress{}.Merge(all[tutorialID]), nil
}

func (r *contentRepository) UpdateProgress(ctx context.Context, tutorialID string, partial domain.Progress) (domain.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.loadProgress(ctx)
	if err != nil {
		return nil, err
	}
	merged := all[tutorialID].Merge(partial)
	all[tutorialID] = merged
	if err := r.records.Save(ctx, repository.KeyProgress, all); err != nil {
		return nil, fmt.Errorf("persist progress: %w", err)
	}
	return merged, nil
}

func (r *contentRepository) InitializeCatalogIfAbsent(ctx context.Context, seed []domain.Tutorial) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing []domain.Tutorial
	found, err := r.records.Load(ctx, repository.KeyCatalog, &existing, nil)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := validateCatalog(seed); err != nil {
		return false, err
	}
	if err := r.records.Save(ctx, repository.KeyCatalog, nonNil(seed)); err != nil {
		return false, fmt.Errorf("persist catalog: %w", err)
	}
	r.opts.logger.WithField("tutorials", len(seed)).Info("catalog initialized")
	return true, nil
}

func (r *contentRepository) ReplaceCatalog(ctx context.Context, tutorials []domain.Tutorial) error {
	if err := validateCatalog(tutorials); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.records.Save(ctx, repository.KeyCatalog, nonNil(tutorials)); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	r.opts.logger.WithField("tutorials", len(tutorials)).Info("catalog replaced")
	return nil
}

func validateCatalog(tutorials []domain.Tutorial) error {
	seen := make(map[string]struct{}, len(tutorials))
	for i, t := range tutorials {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: tutorial %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

func nonNil(tutorials []domain.Tutorial) []domain.Tutorial {
	if tutorials == nil {
		return []domain.Tutorial{}
	}
	return tutorials
}
