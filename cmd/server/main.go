package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/coaching-practice/internal/config"
	"github.com/iliyamo/coaching-practice/internal/database"
	"github.com/iliyamo/coaching-practice/internal/handler"
	"github.com/iliyamo/coaching-practice/internal/logger"
	"github.com/iliyamo/coaching-practice/internal/queue"
	"github.com/iliyamo/coaching-practice/internal/repository"
	"github.com/iliyamo/coaching-practice/internal/router"
	"github.com/iliyamo/coaching-practice/internal/service"
	"github.com/iliyamo/coaching-practice/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx) // Load environment config
	if err != nil {
		boot := logger.Init(logger.Options{Service: "coaching-api"})
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "coaching-api"})

	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if cfg.AutoMigrate {
		if err := database.Migrate(dsn); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	// Redis is optional: without it the credential endpoints are not limited
	ready := map[string]handler.Pinger{"mysql": db, "redis": nil}
	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		ready["redis"] = handler.RedisPinger{Client: rdb}
	} else {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unavailable, rate limiting disabled")
	}

	var events service.EventPublisher
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.URL)
	}

	users := repository.NewUserRepo(db)
	clients := repository.NewClientRepo(db)
	logs := repository.NewCoachingLogRepo(db)

	authSvc := service.NewAuthService(users, utils.NewTokenIssuer(cfg.JWTSecret), cfg.AccessTTL(), cfg.BcryptCost)
	userSvc := service.NewUserService(users, clients, cfg.BcryptCost)
	clientSvc := service.NewClientService(clients, users, cfg.ClientIDTries)
	logSvc := service.NewCoachingLogService(clients, logs, events)

	if cfg.BootstrapAdmin != "" {
		if _, err := userSvc.EnsureAdmin(ctx, cfg.BootstrapAdmin, cfg.BootstrapPass); err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin")
		}
	}

	deps := router.Deps{
		Sessions:       authSvc,
		Auth:           handler.NewAuthHandler(authSvc, handler.CookieConfig{TTL: cfg.AccessTTL(), Secure: cfg.CookieSecure}),
		Users:          handler.NewUserHandler(userSvc),
		Clients:        handler.NewClientHandler(clientSvc),
		Logs:           handler.NewCoachingLogHandler(logSvc),
		RateLimit:      cfg.RateLimit,
		Ready:          ready,
		AllowedOrigins: cfg.AllowedOrigins(),
	}
	if rdb != nil {
		deps.Redis = rdb
	}
	e := router.New(deps)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}
