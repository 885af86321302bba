package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"vidboost/internal/config"
	"vidboost/internal/domain/ports/adapter"
	aiAdapters "vidboost/internal/infra/adapters/ai"
	"vidboost/internal/infra/adapters/imagegen"
	"vidboost/internal/infra/adapters/storage"
	"vidboost/internal/infra/adapters/youtube"
	"vidboost/internal/infra/api"
	"vidboost/internal/infra/auth"
	"vidboost/internal/infra/broadcast"
	pg "vidboost/internal/infra/db/postgres"
	"vidboost/internal/infra/logging"
	"vidboost/internal/infra/metrics"
	red "vidboost/internal/infra/redis"
	"vidboost/internal/infra/worker"
	"vidboost/internal/infra/ws"
	"vidboost/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, canned AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		log.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	transcriptCache := red.NewTranscriptCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	videoRepo := pg.NewPostgresVideoRepo(pool)
	jobRepo := pg.NewPostgresAnalysisJobRepo(pool)
	sessionRepo := pg.NewPostgresChatSessionRepo(pool)

	// ---- Provider adapters ----
	provider, err := youtube.NewClient(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, cfg.YouTube.TranscriptURL, cfg.YouTube.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("youtube adapter")
	}

	var agentAI adapter.AIServiceAdapter
	if cfg.AI.GeminiKey != "" {
		agentAI, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.AgentModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini adapter")
		}
		log.Info().Str("model", cfg.AI.AgentModel).Msg("agent model: gemini")
	} else if cfg.Runtime.Dev {
		agentAI = aiAdapters.NewNoopAIAdapter()
		log.Warn().Msg("agent model: noop (no gemini key, dev mode)")
	} else {
		log.Fatal().Msg("ai.gemini_key is required outside dev mode")
	}

	titleModel, err := aiAdapters.NewGroqTitleAdapter(cfg.AI.GroqKey, cfg.AI.GroqBaseURL, cfg.AI.TitleModel)
	if err != nil {
		log.Fatal().Err(err).Msg("groq title adapter")
	}
	imageGen, err := imagegen.NewHuggingFaceAdapter(cfg.Image.HuggingFaceKey, cfg.Image.ModelURL, cfg.Image.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("huggingface adapter")
	}
	objectStore, err := storage.NewS3Adapter(ctx, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, cfg.Storage.PresignTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("s3 adapter")
	}

	// ---- Broadcast fabric + job workers ----
	hub := broadcast.NewHub(log)
	workerPool := worker.NewPool(cfg.Jobs.Workers, log)
	workerPool.Start(ctx)
	runner := worker.NewAnalysisRunner(
		videoRepo, videoRepo, jobRepo, provider, hub, workerPool, transcriptCache,
		cfg.Jobs.MaxAttempts, cfg.Jobs.Backoff, cfg.YouTube.Timeout, log,
	)

	// ---- Use cases ----
	tools := usecase.NewToolRegistry(
		videoRepo, videoRepo, videoRepo, videoRepo,
		provider, titleModel, imageGen, objectStore, transcriptCache, log,
	)
	agentUC := usecase.NewAgentUseCase(sessionRepo, videoRepo, agentAI, tools, hub, cfg.AI.AgentModel, log)
	videoUC := usecase.NewVideoUseCase(videoRepo, sessionRepo, runner, log)

	// ---- HTTP + websocket edges ----
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	router := chi.NewRouter()
	router.Use(api.Recover(log), api.RequestLog(log))
	api.NewServer(videoUC, verifier, log).Register(router)
	ws.NewGateway(hub, verifier, sessionRepo, videoRepo, agentUC, runner, log).Register(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
	workerPool.Stop()
	hub.Close()
}
