package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/productgenius/internal/admin"
	"github.com/digkill/productgenius/internal/config"
	"github.com/digkill/productgenius/internal/database"
	"github.com/digkill/productgenius/internal/gemini"
	"github.com/digkill/productgenius/internal/metrics"
	"github.com/digkill/productgenius/internal/repository"
	"github.com/digkill/productgenius/internal/service"
	"github.com/digkill/productgenius/internal/session"
	"github.com/digkill/productgenius/internal/storage"
	"github.com/digkill/productgenius/internal/telegram"
	"github.com/digkill/productgenius/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users     repository.UserStore
		audit     service.GenerationAuditLog
		purchases service.PurchaseLog
	)
	if cfg.MySQLDSN != "" {
		db, err := database.Connect(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)

		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("database migrate: %v", err)
		}
		users = repository.NewUserRepository(db)
		audit = repository.NewGenerationRepository(db)
		purchases = repository.NewPurchaseRepository(db)
		logr.Info("using mysql entitlement store")
	} else {
		users = repository.NewMemoryUserStore()
		audit = repository.NewMemoryGenerationLog()
		purchases = repository.NewMemoryPurchaseLog()
		logr.Warn("MYSQL_DSN not set, entitlements are kept in memory")
	}

	var sessions session.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		sessions = session.NewRedisCache(rdb, cfg.SessionTTL)
	} else {
		sessions = session.NewMemoryCache()
	}

	var archive service.Archiver
	if cfg.S3Enabled() {
		uploader, err := storage.NewUploader(storage.FromAppConfig(cfg))
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archive = uploader
	}

	if cfg.GeminiAPIKey == "" {
		logr.Warn("GEMINI_API_KEY not set, generations will fail with an authentication error")
	}
	geminiClient := gemini.NewClient(cfg, logr)
	collector := metrics.New()

	accountService := service.NewAccountService(logr, users, service.AdminCredentials{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	purchaseService := service.NewPurchaseService(logr, users, purchases, collector)
	generationService := service.NewGenerationService(logr, users, geminiClient, audit, archive, collector, cfg.GenerationTimeout)
	adminService := service.NewAdminService(logr, users, accountService, purchaseService)

	group, gctx := errgroup.WithContext(ctx)

	var notifier admin.Notifier
	if cfg.BotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatalf("telegram bot: %v", err)
		}
		bot := telegram.NewBot(botAPI, logr, accountService, generationService, purchaseService, sessions, session.NewHistories())
		notifier = bot
		group.Go(func() error {
			if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logr.Warn("TELEGRAM_BOT_TOKEN not set, chat surface disabled")
	}

	adminServer := admin.NewServer(cfg.AdminListenAddr, logr, accountService, adminService, notifier, collector.Handler())
	group.Go(func() error {
		return adminServer.Run(gctx)
	})

	if err := group.Wait(); err != nil {
		logr.Error("server stopped", "err", err)
	}
}
