package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inyogeshwar/YTMusicLabBot/internal/config"
	"github.com/inyogeshwar/YTMusicLabBot/internal/feature/admin"
	"github.com/inyogeshwar/YTMusicLabBot/internal/feature/user"
	"github.com/inyogeshwar/YTMusicLabBot/internal/health"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
	"github.com/inyogeshwar/YTMusicLabBot/internal/lyrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/roles"
	"github.com/inyogeshwar/YTMusicLabBot/internal/settings"
	"github.com/inyogeshwar/YTMusicLabBot/internal/store"
	"github.com/inyogeshwar/YTMusicLabBot/internal/telegram"
	"github.com/inyogeshwar/YTMusicLabBot/internal/youtube"
)

const (
	storeOpenTimeout        = 10 * time.Second
	rosterBootstrapTimeout  = 5 * time.Second
	ytdlpCheckTimeout       = 15 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

var processStart = time.Now()

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":         "startup",
		"database_path": cfg.DatabasePath,
	}).Info("configuration loaded")

	for _, dir := range []string{cfg.DownloadsDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.WithError(err).Error("directory setup error")
			fmt.Fprintf(os.Stderr, "directory setup error: %v\n", err)
			os.Exit(1)
		}
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), storeOpenTimeout)
	db, err := store.NewSQLite(openCtx, cfg.DatabasePath, cfg.PrimaryAdminID)
	cancelOpen()
	if err != nil {
		logger.WithError(err).Error("database open error")
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "database_open").Info("database ready")

	adminRegistrar := admin.NewRegistrar(db, logger)
	rosterCtx, cancelRoster := context.WithTimeout(context.Background(), rosterBootstrapTimeout)
	if err := adminRegistrar.EnsureRoster(rosterCtx, cfg.PrimaryAdminID, cfg.SecondaryAdminIDs); err != nil {
		cancelRoster()
		logger.WithError(err).Error("admin bootstrap error")
		fmt.Fprintf(os.Stderr, "admin bootstrap error: %v\n", err)
		os.Exit(1)
	}
	cancelRoster()

	userRegistrar := user.NewRegistrar(db, logger)
	resolver := roles.NewResolver(cfg.PrimaryAdminID)

	mutator, err := settings.NewMutator(db, logger)
	if err != nil {
		logger.WithError(err).Error("settings setup error")
		fmt.Fprintf(os.Stderr, "settings setup error: %v\n", err)
		os.Exit(1)
	}

	fetcher := youtube.NewFetcher(cfg.YtdlpPath, cfg.TempDir, cfg.MaxFileBytes(), logger)
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), ytdlpCheckTimeout)
	if err := fetcher.CheckInstalled(checkCtx); err != nil {
		logger.WithError(err).Warn("yt-dlp check failed, downloads will not work")
	}
	cancelCheck()

	lyricsClient, err := lyrics.NewClient(cfg.GeniusAPIToken, nil, logger)
	if err != nil {
		logger.WithError(err).Error("lyrics client setup error")
		fmt.Fprintf(os.Stderr, "lyrics client setup error: %v\n", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithStore(db),
		telegram.WithMutator(mutator),
		telegram.WithUserRegistrar(userRegistrar),
		telegram.WithResolver(resolver),
		telegram.WithFetcher(fetcher),
		telegram.WithLyrics(lyricsClient),
		telegram.WithProcessStart(processStart),
	)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, db, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	if err := db.Close(); err != nil {
		logger.WithError(err).Error("database close error")
	} else {
		logger.WithField("event", "database_close").Info("database closed")
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
