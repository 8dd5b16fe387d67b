package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/authoring"
	"github.com/ShayCichocki/cprwiz/internal/config"
	"github.com/ShayCichocki/cprwiz/internal/draftcache"
	"github.com/ShayCichocki/cprwiz/internal/llm"
	"github.com/ShayCichocki/cprwiz/internal/logging"
	"github.com/ShayCichocki/cprwiz/internal/state"
	"github.com/ShayCichocki/cprwiz/internal/validation"
)

// runtime holds everything a command needs to drive the authoring core.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *state.DB
	completer llm.Completer
	validator *validation.Validator
	svc       *authoring.Service
}

// openStore opens and migrates the configured database.
func openStore(cfg *config.Config) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newCompleter builds the configured LLM provider.
func newCompleter(cfg *config.Config) (llm.Completer, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		if errors.Is(err, config.ErrNoAPIKey) {
			return nil, fmt.Errorf("%w: set %s or llm.api_key, or use llm.provider offline", err, config.KeyEnvVar(cfg.LLM.Provider))
		}
		return nil, err
	}
	return llm.New(llm.Settings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     key,
		BaseURL:    cfg.LLM.BaseURL,
		AWSRegion:  cfg.LLM.AWSRegion,
		AWSProfile: cfg.LLM.AWSProfile,
	})
}

// newDraftCache builds the configured draft cache backend.
func newDraftCache(cfg *config.Config) (draftcache.Cache, error) {
	switch cfg.Drafts.Backend {
	case "file":
		return draftcache.NewFileCache(cfg.Drafts.Dir)
	default:
		return draftcache.NewMemoryCache(), nil
	}
}

// validatorOptions maps configuration onto validator options.
func validatorOptions(cfg *config.Config, logger *zap.Logger) validation.Options {
	return validation.Options{
		MaxTokens:        cfg.LLM.MaxTokens,
		ExampleMaxTokens: cfg.LLM.ExampleMaxTokens,
		CallTimeout:      cfg.LLM.CallTimeout,
		ExampleThreshold: cfg.Validation.ExampleThreshold,
		MaxParallel:      cfg.Validation.MaxParallel,
		Rules:            ruleSet(cfg),
		Logger:           logger,
	}
}

func ruleSet(cfg *config.Config) validation.RuleSet {
	return validation.DefaultRuleSet().WithLists(
		cfg.Validation.BannedTerms,
		cfg.Validation.VagueVerbs,
		cfg.Validation.CompletionVerbs,
	)
}

// newRuntime loads configuration and wires the authoring core. quiet
// suppresses console logging for full-screen commands.
func newRuntime(quiet bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.Nop()
	if !quiet || cfg.Log.File != "" {
		logger, err = logging.New(logging.Options{
			Level:       cfg.Log.Level,
			File:        cfg.Log.File,
			Development: cfg.Log.Development,
		})
		if err != nil {
			return nil, err
		}
	}

	completer, err := newCompleter(cfg)
	if err != nil {
		return nil, err
	}
	drafts, err := newDraftCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("open draft cache: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	v := validation.NewValidator(completer, validatorOptions(cfg, logger))
	svc := authoring.NewService(db, v, authoring.Options{Drafts: drafts, Logger: logger})

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		completer: completer,
		validator: v,
		svc:       svc,
	}, nil
}

// usage returns the token tracker of the completer, if it has one.
func (r *runtime) usage() *llm.TokenTracker {
	if t, ok := r.completer.(llm.Tracked); ok {
		return t.Tracker()
	}
	return nil
}

// Close releases the database and flushes the logger.
func (r *runtime) Close() error {
	_ = r.logger.Sync()
	return r.db.Close()
}

// openService wires the authoring core without an LLM, for commands that
// only read sessions.
func openService() (*authoring.Service, *state.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return authoring.NewService(db, nil, authoring.Options{}), db, nil
}
