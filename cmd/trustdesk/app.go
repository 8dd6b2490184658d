package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trustdesk/internal/config"
	"github.com/kailas-cloud/trustdesk/internal/db"
	dbRedis "github.com/kailas-cloud/trustdesk/internal/db/redis"
	logpkg "github.com/kailas-cloud/trustdesk/internal/logger"
	"github.com/kailas-cloud/trustdesk/internal/metrics"
	budgetrepo "github.com/kailas-cloud/trustdesk/internal/repository/budget"
	cachedrepo "github.com/kailas-cloud/trustdesk/internal/repository/cachedanswer"
	docsrepo "github.com/kailas-cloud/trustdesk/internal/repository/docs"
	jobrepo "github.com/kailas-cloud/trustdesk/internal/repository/job"
	"github.com/kailas-cloud/trustdesk/internal/repository/snapshot"
	"github.com/kailas-cloud/trustdesk/internal/transport/notion"
	openaiChat "github.com/kailas-cloud/trustdesk/internal/transport/openai"
	answeruc "github.com/kailas-cloud/trustdesk/internal/usecase/answer"
	llmuc "github.com/kailas-cloud/trustdesk/internal/usecase/llm"
	"github.com/kailas-cloud/trustdesk/internal/usecase/retrieval"
	"github.com/kailas-cloud/trustdesk/internal/usecase/tools"
)

// app is the composition root shared by all subcommands.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  db.Store

	index  *snapshot.Index
	cached *retrieval.CachedAnswers
	chat   *openaiChat.ChatProvider
	router *tools.Router
	budget *llmuc.BudgetTracker
	engine *answeruc.Engine
	jobs   *jobrepo.Repo
}

func newApp(ctx context.Context) (*app, error) {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))

	// Register metrics explicitly (no init())
	metrics.RegisterLLMMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterJobMetrics()
	metrics.RegisterHTTPMetrics()

	a := &app{env: env, cfg: cfg, logger: logger, store: store}
	if err := a.buildRetrieval(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.buildEngine(ctx)
	a.jobs = jobrepo.New(store, cfg.Storage.KeyPrefix)
	return a, nil
}

// buildRetrieval wires the four sources behind the tool router.
func (a *app) buildRetrieval(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	fs := afero.NewOsFs()

	a.index = snapshot.New(fs, cfg.Knowledge.SnapshotDirs, logger)
	snap, err := a.index.Load(ctx)
	if err != nil {
		// search_workspace falls back to the live API
		logger.Warn("Workspace snapshot unreadable", zap.Error(err))
	} else {
		logger.Info("Workspace snapshot loaded", zap.Int("pages", len(snap.Pages)), zap.String("dir", snap.Dir))
	}

	corpus, err := docsrepo.Load(fs, cfg.Documents.Root)
	if err != nil {
		return fmt.Errorf("load documentation: %w", err)
	}
	logger.Info("Documentation loaded", zap.Int("docs", corpus.Len()), zap.Strings("sections", corpus.Sections()))

	seed, err := cachedrepo.LoadSeed(fs, cfg.CachedAnswers.SeedFile)
	if err != nil {
		return fmt.Errorf("load cached answers: %w", err)
	}
	a.cached = retrieval.NewCachedAnswers(cachedrepo.New(seed))

	wcfg := retrieval.WorkspaceConfig{
		SearchLimit:   cfg.Workspace.SearchLimit,
		PreviewBlocks: cfg.Workspace.PreviewBlocks,
		Aliases:       cfg.Workspace.Aliases,
		Controls:      cfg.Workspace.Controls,
	}
	var live *retrieval.Workspace
	if cfg.Workspace.Token != "" {
		live = retrieval.NewWorkspace(notion.New(notion.Config{
			Token:          cfg.Workspace.Token,
			RequestsPerSec: cfg.Workspace.RequestsPerSec,
			HTTPClient:     &http.Client{Timeout: 30 * time.Second},
			Logger:         logger,
		}), wcfg, logger)
	} else {
		logger.Info("Live workspace API disabled (no token)")
		live = retrieval.NewWorkspace(nil, wcfg, logger)
	}

	a.router = tools.NewRouter(tools.Sources{
		CachedAnswers: a.cached,
		Local:         retrieval.NewLocalIndex(a.index, cfg.Workspace.SearchLimit),
		Live:          live,
		Documents:     retrieval.NewDocuments(corpus, cfg.Documents.BaseURL),
	}, cfg.LLM.MaxToolResultChars, logger)
	return nil
}

// buildEngine assembles the provider chain: OpenAI -> Retrying -> Instrumented.
func (a *app) buildEngine(ctx context.Context) {
	cfg, logger := a.cfg, a.logger

	a.chat = openaiChat.NewChatProvider(&openaiChat.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		MaxTokens:  cfg.LLM.MaxTokens,
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.LLM.RequestTimeoutSec) * time.Second},
		Logger:     logger,
	})

	// Always tracked so /v1/usage reports consumption; zero limits never block.
	action := llmuc.BudgetActionWarn
	if cfg.LLM.Budget.Action == "reject" {
		action = llmuc.BudgetActionReject
	}
	a.budget = llmuc.NewBudgetTracker(
		cfg.Storage.KeyPrefix, cfg.LLM.Model,
		cfg.LLM.Budget.DailyTokenLimit, cfg.LLM.Budget.MonthlyTokenLimit, action, logger,
	).WithStore(ctx, budgetrepo.New(a.store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))

	retrying := llmuc.NewRetryingProvider(a.chat, llmuc.RetryPolicy{
		MaxRetries: uint64(cfg.LLM.Retry.MaxRetries),
		BaseDelay:  time.Duration(cfg.LLM.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.LLM.Retry.MaxDelayMs) * time.Millisecond,
		JitterPct:  uint64(cfg.LLM.Retry.JitterPct),
	}, logger)
	provider := llmuc.NewInstrumentedProvider(retrying, cfg.LLM.Model, a.budget, logger)

	a.engine = answeruc.NewEngine(provider, a.router, answeruc.Config{
		SystemPrompt:     cfg.LLM.SystemPrompt,
		MaxTurns:         cfg.LLM.MaxTurns,
		ParallelTools:    cfg.LLM.ParallelTools,
		MaxParallelTools: cfg.LLM.MaxParallelTools,
	}, logger)
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}
