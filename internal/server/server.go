package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/sift/config"
	"github.com/mohammad-safakhou/sift/internal/ingest/arxiv"
	"github.com/mohammad-safakhou/sift/internal/notify"
	"github.com/mohammad-safakhou/sift/internal/notify/twilio"
	"github.com/mohammad-safakhou/sift/internal/pipeline"
	"github.com/mohammad-safakhou/sift/internal/retry"
	"github.com/mohammad-safakhou/sift/internal/store"
	"github.com/mohammad-safakhou/sift/provider"
	openai_provider "github.com/mohammad-safakhou/sift/provider/openai"
)

// Run wires the full service and blocks serving HTTP until the process
// exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	_ = Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	pipe := BuildPipeline(cfg, st)

	api := e.Group("/api")

	ch := &ContentHandler{Store: st}
	ch.Register(api)

	sh := &SubscribeHandler{Store: st}
	sh.Register(api)

	rh := &RunsHandler{Store: st, Pipeline: pipe}
	rh.Register(api)

	sched := &Scheduler{
		Store:    st,
		Pipeline: pipe,
		Cron:     cfg.Pipeline.ScheduleCron,
		Stop:     make(chan struct{}),
		Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10011"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// BuildPipeline assembles the staged pipeline from config, selecting
// degraded fallbacks (mock LLM, dry-run transport, in-process lock)
// when the corresponding dependency is not configured.
func BuildPipeline(cfg *config.Config, st *store.Store) *pipeline.Pipeline {
	logger := log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)

	var llm provider.Provider
	if cfg.LLM.APIKey == "" {
		llm = provider.NewMock(logger)
	} else {
		llm = openai_provider.NewClient(
			cfg.LLM.APIKey, cfg.LLM.BaseURL,
			cfg.LLM.CompletionModel, cfg.LLM.EmbeddingModel,
			cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.Timeout,
		)
	}

	var transport notify.Transport
	switch {
	case cfg.Delivery.DryRun:
		logger.Printf("delivery dry-run enabled, digests will be logged only")
		transport = &notify.DryRun{Logger: logger}
	case cfg.Delivery.Configured():
		transport = twilio.NewNotifier(cfg.Delivery.AccountSID, cfg.Delivery.AuthToken, cfg.Delivery.FromNumber)
	default:
		logger.Printf("WARNING: no delivery credentials configured, falling back to dry-run")
		transport = &notify.DryRun{Logger: logger}
	}

	var lock pipeline.RunLock
	if cfg.Storage.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		lock = &pipeline.RedisLock{Rdb: rdb, Key: "sift:pipeline:lock", TTL: 15 * time.Minute}
	} else {
		logger.Printf("redis not configured, using in-process run lock")
		lock = &pipeline.LocalLock{}
	}

	policy := retry.Default
	scanner := arxiv.NewScanner(nil, cfg.Ingest.Categories, cfg.Ingest.MaxResults)

	return pipeline.New(logger, st, lock,
		pipeline.NewAcquisition(logger, st, scanner),
		pipeline.NewRelevance(logger, st, llm, policy, cfg.Pipeline.RelevanceBatch, cfg.Pipeline.Workers),
		pipeline.NewEnrichment(logger, st, llm, policy, cfg.Pipeline.EnrichBatch),
		pipeline.NewRanker(logger, st),
		pipeline.NewSynthesis(logger, st, llm, policy, cfg.Pipeline.SynthesisLimit, cfg.Pipeline.Workers),
		pipeline.NewGate(logger, st, llm, policy),
		pipeline.NewDelivery(logger, st, transport, policy),
	)
}
