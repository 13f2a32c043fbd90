package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/fanout"
	"github.com/sells-group/lodging-research/internal/manifest"
	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/orchestrator"
	"github.com/sells-group/lodging-research/internal/profile"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/internal/session"
	"github.com/sells-group/lodging-research/internal/source"
	"github.com/sells-group/lodging-research/internal/store"
	anthropicpkg "github.com/sells-group/lodging-research/pkg/anthropic"
	"github.com/sells-group/lodging-research/pkg/jina"
	"github.com/sells-group/lodging-research/pkg/perplexity"
	"github.com/sells-group/lodging-research/pkg/places"
)

// appEnv wires the store, profile table, orchestrator and session manager
// for the CLI commands and the server.
type appEnv struct {
	Store        store.Store
	Profiles     *profile.Table
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Manager
	Learner      *profile.Learner
}

func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "lodging-research.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadSeedProfiles resolves the source profile seed in order of preference:
// explicit profiles file, persisted profiles, built-in defaults.
func loadSeedProfiles(ctx context.Context, st store.Store) ([]model.SourceProfile, error) {
	if cfg.Research.ProfilesPath != "" {
		return profile.LoadProfiles(cfg.Research.ProfilesPath)
	}
	seed, err := st.LoadProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(seed) > 0 {
		return seed, nil
	}
	return profile.DefaultProfiles(), nil
}

func buildRegistry() *source.Registry {
	registry := source.NewRegistry()

	if cfg.Places.Key != "" {
		client := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		registry.Register(source.NewDirectoryAdapter(client, cfg.Places.QPS))
	} else {
		zap.L().Warn("places key not set, directory source disabled")
	}

	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		registry.Register(source.NewNarrativeAdapter(client, cfg.Perplexity.Model))
	} else {
		zap.L().Warn("perplexity key not set, narrative source disabled")
	}

	if cfg.Anthropic.Key != "" {
		registry.Register(source.NewClaudeAdapter(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model))
	} else {
		zap.L().Warn("anthropic key not set, claude source disabled")
	}

	if cfg.Jina.Key != "" {
		client := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
		registry.Register(source.NewWebpageAdapter(client))
	} else {
		zap.L().Warn("jina key not set, webpage source disabled")
	}

	return registry
}

func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	seed, err := loadSeedProfiles(ctx, st)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load source profiles")
	}
	table := profile.NewTable(seed)

	breakers := resilience.NewSourceBreakers(resilience.BreakerConfig{
		FailureThreshold: cfg.Research.BreakerThreshold,
		ResetTimeout:     time.Duration(cfg.Research.BreakerResetSecs) * time.Second,
	})
	coordinator := fanout.NewCoordinator(buildRegistry(), breakers)

	orch := orchestrator.New(coordinator, table, orchestrator.WithBudgets(
		time.Duration(cfg.Research.FullBudgetSecs)*time.Second,
		time.Duration(cfg.Research.NarrowedBudgetSecs)*time.Second,
	))

	return &appEnv{
		Store:        st,
		Profiles:     table,
		Orchestrator: orch,
		Sessions:     session.NewManager(st, orch),
		Learner:      profile.NewLearner(table, cfg.Learning.PenaltyStep),
	}, nil
}

// manifestForKind returns the configured manifest override, or the built-in
// manifest for the entity kind.
func manifestForKind(kind model.EntityKind) (*model.FieldManifest, error) {
	if cfg.Research.ManifestPath != "" {
		return manifest.Load(cfg.Research.ManifestPath)
	}
	return manifest.ForKind(kind)
}
