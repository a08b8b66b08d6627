package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hexel-dev/chess-arena/internal/archive"
	appcfg "github.com/hexel-dev/chess-arena/internal/config"
	"github.com/hexel-dev/chess-arena/internal/gateway"
	"github.com/hexel-dev/chess-arena/internal/matchmake"
	"github.com/hexel-dev/chess-arena/internal/notify"
	"github.com/hexel-dev/chess-arena/internal/obslog"
	"github.com/hexel-dev/chess-arena/internal/rules"
	"github.com/hexel-dev/chess-arena/internal/session"
	"github.com/hexel-dev/chess-arena/internal/snapshot"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	registry := session.NewRegistry(rules.NewChessValidator(), logger)
	registry.SetDefaultTimeControl(cfg.DefaultInitialMs, cfg.DefaultIncrementMs)

	// durable store: redis when configured, otherwise the snapshot file
	var store snapshot.Store
	if cfg.RedisURL != "" {
		client, err := snapshot.DialRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer client.Close()
		store = snapshot.NewRedisStore(client, cfg.RedisKey)
	} else {
		store = snapshot.NewFileStore(cfg.SnapshotPath)
	}
	manager := snapshot.NewManager(registry, store, logger)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	restored, err := manager.Load(loadCtx)
	cancelLoad()
	if err != nil {
		log.Fatalf("snapshot load error: %v", err)
	}
	logger.Info("server_restore", zap.Int("sessions", restored))

	saver := snapshot.NewAutosaver(manager, cfg.AutosaveDelay, logger)
	registry.AttachSaver(saver)

	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		defer repo.Close()
		registry.AttachArchiver(repo)
	}
	if cfg.WebhookURL != "" {
		registry.AttachNotifier(notify.NewWebhook(cfg.WebhookURL, logger))
	}

	queue := matchmake.NewQueue(registry, logger)
	server := gateway.NewServer(registry, queue, logger)
	server.AttachPersister(manager)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopSweep := make(chan struct{})
	go func() {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-stopSweep:
				return
			case <-t.C:
				registry.SweepClocks()
			}
		}
	}()

	go func() {
		logger.Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("server_shutdown")

	close(stopSweep)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	// final save is best effort; losing the last burst is acceptable
	if err := saver.Flush(shutdownCtx); err != nil {
		logger.Warn("final_save_error", zap.Error(err))
	}
}
