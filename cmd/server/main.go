// Command server runs the Natours authentication API.
//
//	@title						Natours API
//	@version					1.0
//	@description				Authentication and account management for the Natours tour-booking service.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/api"
	"github.com/natours/tour-booking/internal/api/handler"
	"github.com/natours/tour-booking/internal/core/ports"
	"github.com/natours/tour-booking/internal/core/service"
	"github.com/natours/tour-booking/internal/infrastructure/crypto"
	"github.com/natours/tour-booking/internal/infrastructure/db/memory"
	mongodb "github.com/natours/tour-booking/internal/infrastructure/db/mongo"
	redisdb "github.com/natours/tour-booking/internal/infrastructure/db/redis"
	"github.com/natours/tour-booking/internal/infrastructure/mail"
	"github.com/natours/tour-booking/internal/infrastructure/queue"
	"github.com/natours/tour-booking/internal/infrastructure/token"
	"github.com/natours/tour-booking/internal/pkg/config"
	"github.com/natours/tour-booking/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// storage is what the selected store driver provides.
type storage struct {
	users    ports.UserRepository
	audit    ports.AuditLog
	cooldown ports.ResetCooldown
	checks   []handler.DependencyCheck
	close    func(context.Context)
}

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "natours-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open storage")
	}

	// The pool outlives the signal context so requests drained by Shutdown
	// can still hash.
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	pool := queue.NewPool(cfg.Auth.HashWorkers, logger.Component(log, "hash-pool"))
	pool.Start(poolCtx)

	hasher := crypto.NewBcryptHasher(cfg.Auth.BcryptCost, pool)
	issuer, err := token.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build token issuer")
	}

	credentials := service.NewCredentialStore(store.users)
	authLog := logger.Component(log, "auth")

	authService := service.NewAuthService(service.AuthDeps{
		Store:    credentials,
		Hasher:   hasher,
		Tokens:   issuer,
		Resets:   service.NewResetTokenManager(credentials, hasher, cfg.Auth.ResetTTL),
		Mailer:   newMailer(cfg, log),
		Audit:    store.audit,
		Cooldown: store.cooldown,
		Timeout:  cfg.Auth.OpTimeout,
		Logger:   authLog,
	})
	sessions := service.NewSessionService(issuer, credentials, cfg.Auth.OpTimeout, authLog)
	users := service.NewUserService(credentials, store.audit, cfg.Auth.OpTimeout, logger.Component(log, "users"))

	e := api.NewRouter(api.RouterDeps{
		Auth:             authService,
		Users:            users,
		Sessions:         sessions,
		Health:           handler.NewHealthHandler(logger.Component(log, "health"), store.checks...),
		Logger:           log,
		BaseURL:          cfg.PublicBaseURL,
		RateLimitPerHour: cfg.RateLimit.PerHour,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	stopPool()
	pool.Wait()
	store.close(shutdownCtx)
	log.Info().Msg("graceful shutdown completed")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store; accounts are lost on restart")
		return &storage{
			users: memory.NewUserRepository(),
			audit: memory.NewAuditLog(),
			close: func(context.Context) {},
		}, nil
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	users := mongodb.NewUserRepository(db)
	audit := mongodb.NewAuditRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, audit); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &storage{
		users:    users,
		audit:    audit,
		cooldown: redisdb.NewResetCooldown(rdb, cfg.Auth.ResetCooldown),
		checks:   []handler.DependencyCheck{handler.MongoCheck(db), handler.RedisCheck(rdb)},
		close: func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("redis close")
			}
		},
	}, nil
}

func newMailer(cfg *config.Config, log zerolog.Logger) ports.Mailer {
	mailLog := logger.Component(log, "mailer")
	if cfg.SMTP.Host == "" {
		mailLog.Warn().Msg("SMTP_HOST not set; emails are logged instead of sent")
		return mail.NewLogMailer(mailLog)
	}
	return mail.NewSMTPMailer(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		ResetTTL: cfg.Auth.ResetTTL,
	}, mailLog)
}
