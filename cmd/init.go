package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/fetcher"
	"github.com/heartland-scout/scout-cli/internal/marathon"
	"github.com/heartland-scout/scout-cli/internal/progress"
	"github.com/heartland-scout/scout-cli/internal/store"
	"github.com/heartland-scout/scout-cli/internal/tools"
	anthropicpkg "github.com/heartland-scout/scout-cli/pkg/anthropic"
)

// initStore creates and migrates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "init %s store", cfg.Store.Driver)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	zap.L().Info("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// appEnv bundles the production clients shared by the commands. Pipelines are
// cheap to assemble, so callers build one per sink.
type appEnv struct {
	store store.Store
	tools tools.Client
	llm   marathon.LLM
}

// initEnv wires the store, tool client, and model client from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required (SCOUT_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	fetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Tools.UserAgent,
		Timeout:    time.Duration(cfg.Tools.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Tools.MaxRetries,
		DataGovKey: cfg.DataGov.Key,
	})
	toolClient := tools.New(fetch, tools.WithTimeout(time.Duration(cfg.Tools.TimeoutSecs)*time.Second))

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	llm := marathon.NewAnthropicLLM(anthropicClient, marathon.AnthropicLLMConfig{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
		CacheTTL:    cfg.Anthropic.CacheTTL,
	})

	return &appEnv{store: st, tools: toolClient, llm: llm}, nil
}

func (e *appEnv) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// pipeline assembles a marathon pipeline routing progress to the given sink.
func (e *appEnv) pipeline(sink progress.Sink) *marathon.Pipeline {
	return marathon.NewPipeline(e.store, e.tools, e.llm,
		marathon.WithSink(sink),
		marathon.WithNarrativeBudget(cfg.Marathon.NarrativeBudget),
		marathon.WithPreviewBudget(cfg.Marathon.PreviewBudget),
	)
}
