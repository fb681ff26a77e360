package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"hyperlearn/internal/catalog"
	"hyperlearn/internal/config"
	"hyperlearn/internal/digest"
	"hyperlearn/internal/domain"
	"hyperlearn/internal/editor"
	"hyperlearn/internal/metrics"
	"hyperlearn/internal/repository"
	"hyperlearn/internal/repository/memory"
	"hyperlearn/internal/repository/sqlite"
	"hyperlearn/internal/sandbox"
	"hyperlearn/internal/security"
	"hyperlearn/internal/service"
)

// NewLogger builds the text logger every host uses.
func NewLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level == "" {
		return logger, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// Bootstrap opens the configured store, seeds the catalog on first start
// and wires every component. reg may be nil when metrics are not exported.
func Bootstrap(ctx context.Context, cfg config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*App, error) {
	var closers []func() error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	store = repository.WithNamespace(store, cfg.Storage.Namespace)

	hasher, err := digest.ForScheme(cfg.Auth.Hash, cfg.Auth.BcryptCost)
	if err != nil {
		return fail(err)
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if reg != nil {
		recorder = metrics.NewCollector(reg)
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithHasher(hasher),
		service.WithMetrics(recorder),
	}
	content := service.NewContentRepository(store, opts...)

	seed, err := seedCatalog(cfg)
	if err != nil {
		return fail(err)
	}
	if _, err := content.InitializeCatalogIfAbsent(ctx, seed); err != nil {
		return fail(fmt.Errorf("initialize catalog: %w", err))
	}

	engine := sandbox.NewRealmEngine(sandbox.Limits{
		Timeout:       cfg.Runner.Timeout,
		StarlarkSteps: cfg.Runner.Steps,
	}, logger)
	runner := sandbox.NewRunner(engine, sandbox.Config{
		MaxLines:  cfg.Runner.MaxLines,
		Logger:    logger,
		Metrics:   recorder,
		Sanitizer: security.NewPreviewSanitizer(),
	})

	a := New(Deps{
		Credentials: service.NewCredentialStore(store, opts...),
		Sessions:    service.NewSessionManager(store, opts...),
		Content:     content,
		Runner:      runner,
		Editor:      editor.New(editor.Config{Debounce: cfg.Editor.Debounce, Logger: logger}),
		Autorun:     cfg.Editor.Autorun,
		Logger:      logger,
	})
	a.closers = closers
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.KeyValueStore, func() error, error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory storage, nothing will be persisted")
		return memory.NewStore(), nil, nil
	case "sqlite", "":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		store := sqlite.NewKVStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init kv store: %w", err)
		}
		logger.WithField("path", cfg.Database.Path).Debug("sqlite store ready")
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func seedCatalog(cfg config.Config) ([]domain.Tutorial, error) {
	if cfg.Catalog.SeedGlob == "" {
		return catalog.Seed(), nil
	}
	tutorials, err := catalog.LoadGlob(cfg.Catalog.SeedGlob)
	if err != nil {
		return nil, fmt.Errorf("load seed catalog: %w", err)
	}
	return tutorials, nil
}
