package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/digkill/InteriorAI/internal/admin"
	"github.com/digkill/InteriorAI/internal/auth"
	"github.com/digkill/InteriorAI/internal/config"
	"github.com/digkill/InteriorAI/internal/database"
	"github.com/digkill/InteriorAI/internal/jobs"
	"github.com/digkill/InteriorAI/internal/notify"
	"github.com/digkill/InteriorAI/internal/prompt"
	"github.com/digkill/InteriorAI/internal/replicate"
	"github.com/digkill/InteriorAI/internal/repository"
	"github.com/digkill/InteriorAI/internal/service"
	"github.com/digkill/InteriorAI/internal/storage"
	"github.com/digkill/InteriorAI/internal/web"
	"github.com/digkill/InteriorAI/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	catalog, err := prompt.LoadCatalog()
	if err != nil {
		log.Fatalf("style catalog: %v", err)
	}

	sinks := []notify.Sink{notify.NewDiscord(cfg.DiscordWebhookURL, cfg.NotifyTimeout)}
	if cfg.TelegramConfigured() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logr.Warn("telegram notifications disabled", "err", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	dispatcher := notify.NewDispatcher(logr, cfg.NotifyTimeout, sinks...)
	if !dispatcher.Discord().IsDiscordConfigured() {
		logr.Warn("discord webhook not configured, notifications are a no-op")
	}

	var store storage.Store = storage.Inline{}
	if cfg.StorageConfigured() {
		uploader, err := storage.NewUploader(storage.ConfigFrom(cfg))
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		store = uploader
	} else {
		logr.Warn("object storage not configured, inputs are sent inline")
	}

	if !cfg.ModelConfigured() {
		logr.Warn("replicate token missing, generations will fail")
	}
	model := replicate.NewClient(cfg, logr)

	profileRepo := repository.NewProfileRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	planRepo := repository.NewPlanRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	contentRepo := repository.NewContentRepository(db)

	userService := service.NewUserService(cfg, logr, profileRepo, dispatcher)
	generationService := service.NewGenerationService(cfg, logr, catalog, profileRepo, generationRepo, model, store, dispatcher)
	planService := service.NewPlanService(planRepo)
	purchaseService := service.NewPurchaseService(logr, purchaseRepo, userService, planService)
	contentService, err := service.NewContentService(logr, contentRepo)
	if err != nil {
		log.Fatalf("content defaults: %v", err)
	}
	activity, err := service.NewActivityFeed(catalog)
	if err != nil {
		log.Fatalf("activity feed: %v", err)
	}

	if err := planService.EnsureDefaultPlans(ctx); err != nil {
		log.Fatalf("ensure default plans: %v", err)
	}
	if err := contentService.Seed(ctx); err != nil {
		log.Fatalf("seed content: %v", err)
	}

	sessions := auth.NewSessions(cfg)
	var provider auth.Provider
	if sb, err := auth.NewSupabase(cfg); err != nil {
		logr.Warn("sign in disabled", "err", err)
	} else {
		provider = sb
	}

	adminServer, err := admin.NewServer(logr, sessions, auth.AdminCredentials{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	}, userService, planService, purchaseService, contentService, generationRepo, dispatcher)
	if err != nil {
		log.Fatalf("admin server: %v", err)
	}

	webServer, err := web.NewServer(cfg, logr, web.Deps{
		Sessions:    sessions,
		Provider:    provider,
		Users:       userService,
		Generations: generationService,
		Plans:       planService,
		Content:     contentService,
		Activity:    activity,
		Discord:     dispatcher.Discord(),
		DB:          db,
		Admin:       adminServer,
	})
	if err != nil {
		log.Fatalf("web server: %v", err)
	}

	scheduler := jobs.NewScheduler(logr)
	sweeper := jobs.NewStaleSweeper(generationRepo, logr, cfg.ModelTimeout)
	if err := scheduler.Add(jobs.StaleSweepSpec, "stale-generations", time.Minute, func(ctx context.Context) error {
		_, err := sweeper.Run(ctx)
		return err
	}); err != nil {
		log.Fatalf("schedule sweeper: %v", err)
	}
	if _, err := sweeper.Run(ctx); err != nil {
		logr.Error("initial stale sweep", "err", err)
	}
	scheduler.Start()

	if err := webServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("web server stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	dispatcher.Wait(shutdownCtx)
}
