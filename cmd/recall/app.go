package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/config"
	dbRedis "github.com/kailas-cloud/recall/internal/db/redis"
	"github.com/kailas-cloud/recall/internal/domain"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/ngram"
	"github.com/kailas-cloud/recall/internal/repository/answercache"
	budgetrepo "github.com/kailas-cloud/recall/internal/repository/budget"
	"github.com/kailas-cloud/recall/internal/storage/s3"
	bedrockGen "github.com/kailas-cloud/recall/internal/transport/bedrock"
	openaiGen "github.com/kailas-cloud/recall/internal/transport/openai"
	answeruc "github.com/kailas-cloud/recall/internal/usecase/answer"
	"github.com/kailas-cloud/recall/internal/usecase/corpus"
	generationuc "github.com/kailas-cloud/recall/internal/usecase/generation"
	"github.com/kailas-cloud/recall/internal/usecase/index"
	queryuc "github.com/kailas-cloud/recall/internal/usecase/query"
	"github.com/kailas-cloud/recall/internal/version"
)

// app holds the wired services shared by the serve and ask commands.
type app struct {
	cfg       config.Config
	env       string
	logger    *zap.Logger
	cache     *dbRedis.Store // nil when no cache is configured
	generator domain.Generator
	model     domain.HealthChecker // nil when the provider has no cheap health endpoint
	builder   *index.Builder
	query     *queryuc.Service
}

// answerer is satisfied by the plain and the cached grounded answerer.
type answerer interface {
	Answer(ctx context.Context, question string, passages []string) (string, error)
}

// newApp loads config and builds everything except the HTTP layer and the capture controller.
func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logpkg.SetDefault(logger)

	logger.Info("Starting recall",
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("bucket", cfg.Storage.Bucket),
		zap.Strings("prefixes", cfg.Storage.Prefixes),
		zap.String("model_provider", cfg.Model.Provider),
		zap.String("model_id", cfg.Model.ModelID),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	a := &app{cfg: cfg, env: env, logger: logger}

	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.cache = store
		logger.Info("Connected to answer cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	objects, err := s3.NewStore(awsCfg, s3.Config{
		Bucket:       cfg.Storage.Bucket,
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
		Timeout:      time.Duration(cfg.Storage.TimeoutSec) * time.Second,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create object store: %w", err)
	}

	loader := corpus.New(objects, cfg.Storage.Prefixes, cfg.Storage.FetchConcurrency, logger)
	a.builder = index.NewBuilder(
		loader,
		chunker.New(cfg.Index.ChunkSize, cfg.Index.Overlap()),
		ngram.New(cfg.Index.NgramMin, cfg.Index.NgramMax),
		time.Duration(cfg.Index.BuildTimeoutSec)*time.Second,
		logger,
	)

	a.generator = a.buildGenerator(ctx, awsCfg)

	var ans answerer = answeruc.New(a.generator, answeruc.Config{
		MaxTokens:       cfg.Model.MaxTokens,
		MaxContextChars: cfg.Model.MaxContextChars,
		Timeout:         time.Duration(cfg.Model.TimeoutSec) * time.Second,
	}, logger)
	if a.cache != nil {
		ans = answercache.New(
			ans, a.cache, cfg.Model.ModelID,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.AnswerCacheTotal, logger,
		)
	}

	a.query = queryuc.New(a.builder, index.NewRetriever(cfg.Index.Threshold()), ans, queryuc.Config{
		MaxTopK:     cfg.Index.MaxTopK,
		MaxPassages: cfg.Model.MaxPassages,
	})
	return a, nil
}

// buildGenerator assembles the decorator chain: provider -> Instrumented -> Throttled.
func (a *app) buildGenerator(ctx context.Context, awsCfg aws.Config) domain.Generator {
	mc := a.cfg.Model

	var base domain.Generator
	switch mc.Provider {
	case "openai":
		base = openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:   mc.APIKey,
			BaseURL:  mc.BaseURL,
			Model:    mc.ModelID,
			Provider: mc.Provider,
			Logger:   a.logger,
		})
	default:
		base = bedrockGen.NewGenerator(awsCfg, mc.ModelID, a.logger)
	}

	if hc, ok := base.(domain.HealthChecker); ok {
		a.model = hc
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budget generationuc.BudgetChecker
	if mc.Budget.DailyTokenLimit > 0 || mc.Budget.MonthlyTokenLimit > 0 {
		action := generationuc.BudgetActionWarn
		if mc.Budget.Action == "reject" {
			action = generationuc.BudgetActionReject
		}
		tracker := generationuc.NewBudgetTracker(
			mc.Provider, mc.Budget.DailyTokenLimit, mc.Budget.MonthlyTokenLimit, action, a.logger,
		)
		if a.cache != nil {
			tracker.WithStore(ctx, budgetrepo.New(a.cache, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		}
		budget = tracker
	}

	var gen domain.Generator = generationuc.NewInstrumentedGenerator(base, mc.Provider, mc.ModelID, budget, a.logger)
	if mc.RatePerSec > 0 {
		gen = generationuc.NewThrottled(gen, mc.ModelID, mc.RatePerSec, mc.Burst)
	}

	a.logger.Info("Generator created",
		zap.String("provider", mc.Provider),
		zap.String("model", mc.ModelID),
		zap.Bool("budget", budget != nil),
		zap.Float64("rate_per_sec", mc.RatePerSec),
	)
	return gen
}

// buildIndex runs the startup build. Failures are logged; the service still starts.
func (a *app) buildIndex(ctx context.Context) {
	snap, err := a.builder.Build(ctx)
	if err != nil {
		a.logger.Error("Initial index build failed", zap.Error(err))
		return
	}
	if !snap.Ready() {
		a.logger.Warn("Index is not ready after startup build", zap.String("reason", snap.Reason))
	}
}

// Close releases the cache connection.
func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}
