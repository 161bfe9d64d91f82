package wiring

import (
	"errors"
	"fmt"

	chatadapters "github.com/seproj/chatbackend/internal/domains/chat/adapters"
	chatapi "github.com/seproj/chatbackend/internal/domains/chat/api"
	chatdomain "github.com/seproj/chatbackend/internal/domains/chat/domain"
	chatports "github.com/seproj/chatbackend/internal/domains/chat/ports"

	orchadapters "github.com/seproj/chatbackend/internal/domains/orchestrator/adapters"
	orchapi "github.com/seproj/chatbackend/internal/domains/orchestrator/api"
	orchapp "github.com/seproj/chatbackend/internal/domains/orchestrator/app"
	orchdomain "github.com/seproj/chatbackend/internal/domains/orchestrator/domain"
	orchports "github.com/seproj/chatbackend/internal/domains/orchestrator/ports"

	"github.com/seproj/chatbackend/internal/platform/clock"
	"github.com/seproj/chatbackend/internal/platform/config"
	"github.com/seproj/chatbackend/internal/platform/database"
	"github.com/seproj/chatbackend/internal/platform/logging"
	"github.com/seproj/chatbackend/internal/platform/policy"
)

// Container is the in-process DI container for one configured process.
type Container struct {
	Config config.Config
	Clock  clock.Clock
	Log    logging.Logger
	Policy policy.Policy

	Engine chatports.GenerationService
	Store  chatports.TranscriptStore

	Chat         chatapi.API
	Orchestrator orchapi.API

	closers []func() error
}

// Options let tests swap adapters before the domains are assembled.
type Options struct {
	Engine chatports.GenerationService
	Spawn  orchapp.Spawner
}

func New(cfg config.Config, log logging.Logger, opts Options) (*Container, error) {
	orchDefaults := orchdomain.Defaults{
		MaxTranscriptsPerPersona: cfg.Orchestrator.MaxTranscripts,
		SummaryMaxTokens:         cfg.Orchestrator.SummaryMaxTokens,
		RequirementsMaxTokens:    cfg.Orchestrator.RequirementsMaxTokens,
	}
	if err := orchDefaults.Validate(); err != nil {
		return nil, err
	}

	var err error
	clk := clock.SystemUTC{}
	ctr := &Container{
		Config: cfg,
		Clock:  clk,
		Log:    log,
		Policy: policy.Policy{
			NetEnabled:   !cfg.Network.Disabled,
			AllowDomains: cfg.Network.AllowHosts,
		},
	}

	ad := chatadapters.NewFSAdapters(cfg.Storage.Dir, clk, log)
	if cfg.Storage.Driver == config.StorageSQLite {
		if ad.Store, err = ctr.openSQLiteStore(); err != nil {
			return nil, err
		}
	}
	store := ad.Store
	ctr.Store = store

	engine := opts.Engine
	if engine == nil {
		engine, err = ad.Engines.Build(chatadapters.EngineOptions{
			Backend:    cfg.Engine.Backend,
			Model:      cfg.Engine.Model,
			ServeModel: cfg.Engine.ServeModel,
			BaseURL:    cfg.Engine.BaseURL,
			APIKey:     cfg.Engine.APIKey,
			Policy:     ctr.Policy,
			Inflight:   ad.Inflight,
			Log:        log,
		})
		if err != nil {
			_ = ctr.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	ctr.Engine = engine

	cache, err := ctr.openStateCache()
	if err != nil {
		_ = ctr.Close()
		return nil, err
	}

	orch := orchapi.New(orchapi.Dependencies{
		Source:    orchadapters.ChatTranscripts{Store: store},
		Generator: orchadapters.EngineGenerator{Engine: engine},
		Cache:     cache,
		Defaults:  orchDefaults,
		Log:       log,
		Spawn:     opts.Spawn,
	})
	ctr.Orchestrator = orch
	// Stop background refreshes before the stores they read are closed.
	ctr.closers = append([]func() error{func() error { orch.Close(); return nil }}, ctr.closers...)

	ctr.Chat = chatapi.New(chatapi.Dependencies{
		Clock:   clk,
		Engine:  engine,
		Store:   store,
		Refresh: orch,
		Log:     log,
		Defaults: chatdomain.SamplingDefaults{
			MaxTokens:        cfg.Sampling.MaxTokens,
			Temperature:      cfg.Sampling.Temperature,
			TopP:             cfg.Sampling.TopP,
			FrequencyPenalty: cfg.Sampling.FrequencyPenalty,
			Stop:             cfg.Engine.Stop,
		},
	})
	return ctr, nil
}

func (c *Container) openSQLiteStore() (chatports.TranscriptStore, error) {
	db, err := database.Open(database.Config{
		Path:   c.Config.Storage.SQLitePath,
		Log:    c.Log.WithField("component", "gorm"),
		Models: []any{&chatadapters.TranscriptRecord{}},
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store: %w", err)
	}
	c.closers = append(c.closers, func() error { return database.Close(db) })
	return chatadapters.NewSQLiteTranscriptStore(db), nil
}

func (c *Container) openStateCache() (orchports.StateCache, error) {
	if c.Config.Orchestrator.StatePath == "" {
		mem := orchadapters.NewMemoryStateCache()
		mem.Clock = c.Clock
		return mem, nil
	}
	bc, err := orchadapters.OpenBoltStateCache(c.Config.Orchestrator.StatePath, c.Log)
	if err != nil {
		return nil, err
	}
	bc.Clock = c.Clock
	c.closers = append(c.closers, bc.Close)
	return bc, nil
}

// Close stops background work and releases stores, in that order.
func (c *Container) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
