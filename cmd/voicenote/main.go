package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"voicenote/internal/backend"
	"voicenote/internal/blob"
	"voicenote/internal/blob/s3"
	"voicenote/internal/cache"
	"voicenote/internal/cli"
	"voicenote/internal/config"
	apphttp "voicenote/internal/http"
	"voicenote/internal/inference/openai"
	"voicenote/internal/log"
	"voicenote/internal/pipeline"
	"voicenote/internal/textops"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	categories, err := cfg.Categories()
	if err != nil {
		logger.Error("Failed to load categories", log.FieldError, err)
		os.Exit(1)
	}

	// Record store
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize record store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}
	}()

	// Referenced audio store is optional
	var (
		blobs   blob.Store
		uploads blob.Presigner
	)
	if cfg.BlobBucket != "" {
		store, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.BlobBucket,
			Region:    cfg.BlobRegion,
			Endpoint:  cfg.BlobEndpoint,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			logger.Error("Failed to initialize blob store", log.FieldError, err, "bucket", cfg.BlobBucket)
			os.Exit(1)
		}
		blobs, uploads = store, store
	} else {
		logger.Info("Referenced audio disabled - no BLOB_BUCKET provided")
	}

	client, err := openai.New(openai.Config{
		APIKey:             cfg.OpenAIAPIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		CompletionModel:    cfg.CompletionModel,
		Language:           cfg.TranscriptionLanguage,
		MaxRetryTime:       cfg.UpstreamMaxRetry,
	}, blobs)
	if err != nil {
		logger.Error("Failed to initialize inference client", log.FieldError, err)
		os.Exit(1)
	}

	orchestrator := pipeline.New(client, result.Store, pipeline.Config{
		Language:     cfg.TargetLanguage,
		Categories:   categories,
		Markers:      cfg.BoilerplateMarkers,
		AllowedMimes: cfg.AllowedMimeTypes,
		Timeouts: pipeline.Timeouts{
			Transcribe: cfg.TranscribeTimeout,
			Correct:    cfg.CorrectTimeout,
			Extract:    cfg.ExtractTimeout,
			Persist:    cfg.PersistTimeout,
		},
		Policy: pipeline.Policy{
			FatalCorrection: cfg.FatalCorrection,
			FatalExtraction: cfg.FatalExtraction,
		},
		Cleanup: pipeline.CleanupOptions{
			Enabled: cfg.CleanupReferencedAudio,
			Timeout: cfg.CleanupTimeout,
			Grace:   cfg.CleanupGrace,
		},
	}, logger)

	text := textops.New(client, textops.Options{
		Language:  cfg.TargetLanguage,
		CacheSize: cfg.TextCacheSize,
		CacheTTL:  cfg.TextCacheTTL,
		Timeout:   cfg.TextActionTimeout,
	}, logger)

	caches := cache.NewManager(logger)
	var cacheStats func() cache.Stats
	if c := text.Cache(); c != nil {
		caches.Register(c)
		caches.StartCleanup(5 * time.Minute)
		cacheStats = c.Stats
	}
	defer caches.Stop()

	var readyChecks []apphttp.ReadyCheck
	if result.Ready != nil {
		readyChecks = append(readyChecks, apphttp.ReadyCheck{Name: "record_store", Check: result.Ready})
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Notes:              orchestrator,
		Text:               text,
		Uploads:            uploads,
		UploadPrefix:       cfg.BlobPrefix,
		SignedURLTTL:       cfg.SignedURLTTL,
		AllowedMimes:       cfg.AllowedMimeTypes,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadyChecks:        readyChecks,
		CacheStats:         cacheStats,
		WriteTimeout:       writeTimeout(cfg),
		Logger:             logger,
	})

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting voicenote server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"referenced_audio", uploads != nil,
		"categories", len(categories))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("Server stopped gracefully")
}

// writeTimeout leaves room for every pipeline stage to use its full budget,
// or for one text action, plus time to write the response.
func writeTimeout(cfg *config.Config) time.Duration {
	run := cfg.TranscribeTimeout + cfg.CorrectTimeout + cfg.ExtractTimeout + cfg.PersistTimeout + cfg.CleanupGrace
	return max(run, cfg.TextActionTimeout) + 30*time.Second
}
