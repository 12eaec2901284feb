package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/phishclaw/internal/commands"
	"github.com/nextlevelbuilder/phishclaw/internal/config"
	"github.com/nextlevelbuilder/phishclaw/internal/matrix"
	"github.com/nextlevelbuilder/phishclaw/internal/scan"
	"github.com/nextlevelbuilder/phishclaw/internal/store"
	"github.com/nextlevelbuilder/phishclaw/internal/store/pg"
	"github.com/nextlevelbuilder/phishclaw/internal/store/sqlite"
)

func runBot() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.AccessToken == "" {
		slog.Error("PHISHCLAW_ACCESS_TOKEN is not set; run `phishclaw login` to obtain one")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := matrix.NewClient(cfg.HomeserverURL, cfg.AccessToken)
	client.SetUserAgent(cfg.Providers.UserAgent)

	// Identity must resolve before anything else; without it the pipeline
	// cannot tell its own messages apart and must not start.
	profile, err := buildProfile(ctx, client)
	if err != nil {
		slog.Error("could not resolve bot identity", "error", err)
		os.Exit(1)
	}
	slog.Info("logged in", "user_id", profile.UserID, "display_name", profile.DisplayName)

	reputation, err := openReputationStore(cfg)
	if err != nil {
		slog.Error("could not open reputation store", "error", err)
		os.Exit(1)
	}
	defer reputation.Close()

	var cache *scan.VerdictCache
	if cfg.Redis.Addr != "" {
		cache = scan.NewVerdictCache(cfg.Redis.Addr, time.Duration(cfg.Redis.CleanTTLMinutes)*time.Minute)
		defer cache.Close()
		slog.Info("clean-verdict cache enabled", "addr", cfg.Redis.Addr, "ttl_minutes", cfg.Redis.CleanTTLMinutes)
	}

	providers := []scan.Provider{
		scan.NewFishFish(cfg.Providers.FishFishURL, cfg.Providers.UserAgent),
		scan.NewAntiFish(cfg.Providers.AntiFishURL, cfg.Providers.UserAgent),
	}
	aggregator := scan.NewAggregator(providers, cfg.Providers.RatePerMinute, cache)
	moderator := scan.NewModerator(client, profile, cfg.Rooms.AuditLog, cfg.Prefix)
	pipeline := scan.NewPipeline(client, aggregator, moderator, reputation,
		profile, cfg.Rooms.TelegramLog, cfg.IsIgnoredRoom)
	triage := scan.NewTriage(client, reputation, profile.UserID, cfg.Rooms.TelegramLog, cfg.IsReviewer)
	cmdHandler := commands.NewHandler(client, cfg.Prefix, profile.UserID,
		profile.Localpart, profile.DisplayName, cfg.Rooms.Commands, cfg.Rooms.Support)

	syncer := matrix.NewSyncer(client, profile.UserID, cfg.AutoJoin)
	syncer.OnMessage = func(msg matrix.TextMessage) {
		if enforced := pipeline.HandleMessage(ctx, msg); enforced {
			return
		}
		cmdHandler.Handle(ctx, msg)
	}
	syncer.OnAnnotation = func(ann matrix.Annotation) {
		triage.HandleAnnotation(ctx, ann)
	}
	syncer.OnRoomJoin = func(join matrix.RoomJoin) {
		slog.Info("joined room", "room_id", join.RoomID)
		cmdHandler.Greet(ctx, join.RoomID)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(ctx) })

	slog.Info("phishclaw running", "homeserver", cfg.HomeserverURL, "prefix", cfg.Prefix)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func buildProfile(ctx context.Context, client *matrix.Client) (scan.Profile, error) {
	userID, err := client.WhoAmI(ctx)
	if err != nil {
		return scan.Profile{}, err
	}
	profile := scan.Profile{
		UserID:    userID,
		Localpart: matrix.Localpart(userID),
	}
	// Missing display name is non-fatal; matching on it is just a nicety.
	if name, err := client.DisplayName(ctx, userID); err != nil {
		slog.Warn("could not fetch display name", "error", err)
	} else {
		profile.DisplayName = name
	}
	return profile, nil
}

func openReputationStore(cfg *config.Config) (store.ReputationStore, error) {
	switch {
	case cfg.Database.PostgresDSN != "":
		slog.Info("using postgres reputation store")
		return pg.Open(cfg.Database.PostgresDSN)
	case cfg.Database.SQLitePath != "":
		slog.Info("using sqlite reputation store", "path", cfg.Database.SQLitePath)
		return sqlite.Open(cfg.Database.SQLitePath)
	default:
		slog.Warn("no database configured, reputation data will not survive restarts")
		return store.NewMemoryStore(), nil
	}
}
