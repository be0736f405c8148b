package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/mailtrack/internal/content"
	"github.com/nhle/mailtrack/internal/credential"
	"github.com/nhle/mailtrack/internal/engine"
	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/server"
	"github.com/nhle/mailtrack/internal/source/imap"
	"github.com/nhle/mailtrack/internal/store"
	"github.com/nhle/mailtrack/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env if present (local development); real deployments use
	// the config file or MAILTRACK_* environment variables.
	_ = godotenv.Load()

	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	// Write a starter config on first run so there is a file to edit.
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			logger.Warn().Err(err).Msg("writing starter config")
		}
	}

	password := cfg.Mailbox.Password
	if password == "" && cfg.Mailbox.Username != "" {
		password, err = credential.Get(credential.MailboxKey(cfg.Mailbox.Username))
		if err != nil {
			logger.Debug().Err(err).Msg("no keyring credential for mailbox")
		}
	}
	if cfg.Mailbox.Host == "" || cfg.Mailbox.Username == "" || password == "" {
		logger.Fatal().Msg("mailbox host, username and password are required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("creating data directory")
	}
	snapshots, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening snapshot store")
	}
	defer snapshots.Close()

	images, err := content.NewFSStore(cfg.Content.Dir, cfg.Content.PublicBase)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening content store")
	}

	client := imap.NewClient(
		cfg.Mailbox.Host, cfg.Mailbox.Port,
		cfg.Mailbox.Username, password,
		cfg.Mailbox.SSL, cfg.Mailbox.Folder,
	)

	session := engine.NewSession(images, logger.With().Str("component", "engine").Logger())
	poller := sync.New(client, session, snapshots, sync.Options{
		Interval:   time.Duration(cfg.Mailbox.PollIntervalSec) * time.Second,
		WindowDays: cfg.Mailbox.WindowDays,
		FetchLimit: cfg.Mailbox.FetchLimit,
	}, logger.With().Str("component", "poller").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.ValidateConnection(ctx); err != nil {
		var authErr *imap.AuthError
		if errors.As(err, &authErr) {
			logger.Fatal().Err(err).Msg("mailbox rejected credentials")
		}
		logger.Warn().Err(err).Msg("mailbox validation failed, will retry on poll")
	}

	// Warm-start from the last persisted snapshot.
	if snap, err := snapshots.LatestSnapshot(ctx); err != nil {
		logger.Warn().Err(err).Msg("loading latest snapshot")
	} else if snap != nil {
		poller.Seed(*snap)
		logger.Info().Msg("seeded state from snapshot")
	}

	go poller.Run(ctx)

	if !cfg.Server.Enabled {
		<-ctx.Done()
		return
	}

	app := server.New(poller, images.Dir(), cfg.Content.PublicBase,
		logger.With().Str("component", "server").Logger())

	go func() {
		<-ctx.Done()
		logger.Info().Dur("timeout", shutdownTimeout).Msg("shutting down")
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("starting state API")
	if err := app.Listen(cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("serving state API")
	}
}
