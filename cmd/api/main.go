package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"recipebox/internal/api"
	"recipebox/internal/config"
	"recipebox/internal/extract"
	"recipebox/internal/images"
	"recipebox/internal/logging"
	"recipebox/internal/platform/gemini"
	"recipebox/internal/platform/localllm"
	"recipebox/internal/recipe"
)

// provider is what the extraction pipeline and the transcribe endpoint need
// from a model backend.
type provider interface {
	extract.Model
	api.Transcriber
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	os.Exit(exitCode(run(cfg, logger), logger))
}

// exitCode logs a failed run and flushes the logger before the process exits.
func exitCode(err error, logger *zap.Logger) int {
	code := 0
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := recipe.NewSQLStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("error creating recipe store: %w", err)
	}
	defer store.Close()

	model, closeModel, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeModel()

	cache, err := newCache(ctx, cfg, store)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(model, cache, cfg.Extraction.Concurrency, logger.Named("extract"))
	imageStore := images.NewStore(cfg.Images.Dir, cfg.Images.URLPrefix, cfg.Images.Width)
	handler := api.NewHandler(extractor, model, store, imageStore, logger.Named("api"), cfg.Extraction.Timeout)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ImageURLPrefix: cfg.Images.URLPrefix,
		ImageDir:       imageStore.Dir(),
		Logger:         logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("provider", cfg.Extraction.Provider),
			zap.String("database", cfg.Database.Driver),
			zap.String("cache", cfg.Cache.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provider, func(), error) {
	switch cfg.Extraction.Provider {
	case config.ProviderOpenAI:
		logger.Info("using OpenAI-compatible provider",
			zap.String("base_url", cfg.OpenAI.BaseURL),
			zap.String("model", cfg.OpenAI.Model),
		)
		client := localllm.NewClient(localllm.Options{
			BaseURL:            cfg.OpenAI.BaseURL,
			APIKey:             cfg.OpenAI.APIKey,
			Model:              cfg.OpenAI.Model,
			TranscriptionModel: cfg.OpenAI.TranscriptionModel,
			MaxTokens:          cfg.OpenAI.MaxTokens,
			Timeout:            cfg.Extraction.Timeout,
		})
		return client, func() {}, nil
	default:
		logger.Info("using Gemini provider",
			zap.String("model", cfg.Gemini.Model),
			zap.String("api_key", config.MaskAPIKey(cfg.Gemini.APIKey)),
		)
		client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.MaxTokens)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating gemini client: %w", err)
		}
		return client, func() { client.Close() }, nil
	}
}

func newCache(ctx context.Context, cfg *config.Config, store recipe.Store) (extract.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		return extract.NewRedisCache(client, cfg.Cache.KeyPrefix, cfg.Cache.TTL), nil
	case config.CacheDatabase:
		return extract.NewStoreCache(store), nil
	default:
		return nil, nil
	}
}
