package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/ai"
	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/config"
	"github.com/procurehub/marketplace-api/internal/database"
	"github.com/procurehub/marketplace-api/internal/handler"
	"github.com/procurehub/marketplace-api/internal/matching"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/queue"
	"github.com/procurehub/marketplace-api/internal/repository"
	"github.com/procurehub/marketplace-api/internal/router"
	"github.com/procurehub/marketplace-api/internal/service"
	"github.com/procurehub/marketplace-api/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.Production())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("migrate schema", "error", err)
		os.Exit(1)
	}
	database.StartReaper(ctx, db, logger, time.Hour, cfg.AnalyticsRetention)

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limits fall back to in-process buckets")
	}

	users := repository.NewUserRepo(db)
	vendors := repository.NewVendorRepo(db)
	products := repository.NewProductRepo(db)
	quotes := repository.NewQuoteRepo(db)
	tokens := repository.NewTokenRepo(db)
	analytics := repository.NewAnalyticsRepo(db)

	mailer := &service.Mailer{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort,
		User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		FrontendOrigin: cfg.FrontendOrigin,
		Logger:         logger,
	}
	authSvc := &auth.Service{
		Users: users, Vendors: vendors, Tokens: tokens,
		Mail: mailer, Logger: logger,
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		BcryptCost: cfg.BcryptCost,
	}

	engineCfg := matching.DefaultConfig()
	engineCfg.Limit = cfg.MatchLimit
	engineCfg.MinScore = cfg.MatchMinScore
	engineCfg.LeaseTermMonth = cfg.LeaseTermMonth
	engine := matching.NewEngine(engineCfg)

	gateway := ai.NewGateway(
		ai.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.AIMaxAttempts, cfg.AITimeout),
		logger,
	)

	notifier := &service.Notifier{URL: cfg.AMQPURL, Logger: logger}
	quoteHandler := &handler.QuoteHandler{
		Quotes: quotes, Vendors: vendors, Products: products, Users: users,
		Engine: engine,
		Uploads: &upload.Store{
			Dir:        cfg.UploadDir,
			MaxBytes:   cfg.MaxUploadSize,
			Extensions: upload.InvoiceExtensions,
		},
		Notifier: notifier,
		Logger:   logger,
	}

	consumer := &queue.Consumer{URL: cfg.AMQPURL, Mailer: mailer, Outreach: analytics, Logger: logger}
	go consumer.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:    cfg,
		Logger: logger,
		Rate:   middleware.NewRateLimiter(rdb),
		Auth:   &handler.AuthHandler{Auth: authSvc},
		Vendor: &handler.VendorHandler{Auth: authSvc, Vendors: vendors, Products: products},
		Quote:  quoteHandler,
		Analytics: &handler.AnalyticsHandler{
			Analytics: analytics,
			Vendors:   vendors,
			Geo: handler.GeoHeaders{
				Country: cfg.GeoCountryHeader,
				Region:  cfg.GeoRegionHeader,
				City:    cfg.GeoCityHeader,
			},
			FrontendOrigin: cfg.FrontendOrigin,
		},
		AI: &handler.AIHandler{
			Gateway: gateway, Vendors: vendors, Users: users,
			Analytics: analytics, Matcher: quoteHandler, BcryptCost: cfg.BcryptCost,
		},
		Health: &handler.HealthHandler{DB: db, Redis: rdb},
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()
	logger.Info("listening", "port", cfg.Port, "env", cfg.Env)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func newLogger(level string, production bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if production {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
