package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mthorvald/audiogen/internal/broadcast"
	"github.com/mthorvald/audiogen/internal/config"
	"github.com/mthorvald/audiogen/internal/gateway"
	"github.com/mthorvald/audiogen/internal/httpapi"
	"github.com/mthorvald/audiogen/internal/integrity"
	"github.com/mthorvald/audiogen/internal/jobs"
	"github.com/mthorvald/audiogen/internal/persistence"
	"github.com/mthorvald/audiogen/internal/pipeline"
	"github.com/mthorvald/audiogen/internal/storage"
	"github.com/mthorvald/audiogen/internal/translate"
	"github.com/mthorvald/audiogen/pkg/log"
)

type verifyScheduler interface {
	Start(cronExpr string) error
	Stop()
}

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded configuration from .env")
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.HTTP.DBPath())
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	files, err := storage.NewFileStore(cfg.HTTP.DataDir, cfg.HTTP.PublicBaseURL)
	if err != nil {
		log.Fatal("Failed to prepare artifact storage: %v", err)
	}

	client := gateway.NewClient(cfg.Gateway.APIURL, cfg.Gateway.APIKey, time.Duration(cfg.Gateway.Timeout)*time.Second)
	translator := translate.NewCachedTranslator(
		client,
		translate.NewCache(cfg.Translate.CacheTTL, cfg.Translate.CacheMaxSize),
		translate.NewRateLimiter(cfg.Translate.MaxCalls, cfg.Translate.Window),
		"narration",
	)

	queue := jobs.NewQueue(cfg.Jobs.WorkerCount, store)
	processor := pipeline.NewProcessor(queue, translator, client, client, files, store, pipeline.Config{
		ChunkSize:      cfg.Synthesis.ChunkSize,
		ChunkDelay:     cfg.Synthesis.ChunkDelay,
		DefaultVoice:   cfg.Synthesis.DefaultVoice,
		Speed:          cfg.Synthesis.Speed,
		MaxRetries:     cfg.Jobs.MaxRetries,
		SourceLanguage: cfg.Translate.SourceLanguage,
	})
	queue.Start(processor.Run)
	defer queue.Stop()

	verifier := integrity.NewVerifier(store, files, cfg.Verify.BatchSize, cfg.Verify.RecheckAfter, cfg.Verify.AlertURL, cfg.Broadcast.CallbackTimeout)
	verifySvc := integrity.NewService(verifier)

	watcher := broadcast.NewWatcher(queue, cfg.Broadcast.PollInterval)
	notifier := broadcast.NewNotifier(watcher, cfg.Broadcast.CallbackTimeout)
	server := httpapi.NewServer(queue, watcher, notifier,
		httpapi.WithAddr(cfg.HTTP.Addr),
		httpapi.WithFilesRoot(files.Root()),
		httpapi.WithVerifyService(verifySvc),
		httpapi.WithCacheStats(translator.CacheStats),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runWithComponents(ctx, cfg, verifySvc, server); err != nil {
		log.Fatal("Service failed: %v", err)
	}
}

// runWithComponents drives the service lifecycle with injectable components.
func runWithComponents(ctx context.Context, cfg *config.Config, verify verifyScheduler, server httpServer) error {
	if err := verify.Start(cfg.Verify.CronExpr); err != nil {
		return err
	}
	defer verify.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
