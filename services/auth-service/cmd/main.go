package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/lockout"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/notification"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/token"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-service/shared/auth"
	"github.com/vasapolrittideah/identity-service/shared/logger"
	"github.com/vasapolrittideah/identity-service/shared/mailer"
	"github.com/vasapolrittideah/identity-service/shared/security"
	"github.com/vasapolrittideah/identity-service/shared/validator"
)

const (
	serviceName     = "auth-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Service: serviceName}).Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Config{
		Service:    serviceName,
		Level:      cfg.LogLevel,
		Production: cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := lockout.Policy{
		MaxAttempts:  cfg.Lockout.MaxAttempts,
		LockDuration: cfg.Lockout.LockDuration,
	}

	userRepo, closeStore := newUserRepository(ctx, cfg, log, policy)
	defer closeStore()

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer, time.Now)
	tokens := token.NewFactory(jwtAuth, token.Config{
		AccessTokenSecret:     cfg.Token.AccessTokenSecret,
		RefreshTokenSecret:    cfg.Token.RefreshTokenSecret,
		AccessTokenExpiresIn:  cfg.Token.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: cfg.Token.RefreshTokenExpiresIn,
	}, time.Now)

	deps := usecase.Dependencies{
		UserRepo: userRepo,
		Hasher:   security.NewHasher(cfg.SecurityHasherConfig()),
		Policy:   security.DefaultPasswordPolicy(),
		Cipher:   security.NewFieldCipher(cfg.EncryptionKey),
		Tokens:   tokens,
		Notifier: newNotifier(cfg, log),
		Config:   cfg,
		Logger:   log,
		Now:      time.Now,
	}

	v, err := validator.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create validator")
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handler.NewAuthHTTPHandler(
			usecase.NewAuthUsecase(deps),
			usecase.NewPasswordResetUsecase(deps),
			usecase.NewAccountUsecase(deps),
			v,
			log,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Msg("auth service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down auth service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}
}

func newUserRepository(
	ctx context.Context,
	cfg *config.AuthServiceConfig,
	log *zerolog.Logger,
	policy lockout.Policy,
) (repository.UserRepository, func()) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory identity store, records are lost on restart")
		return repository.NewUserMemoryRepository(policy), func() {}
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI).SetTimeout(cfg.Mongo.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mongo")
	}

	repo := repository.NewUserMongoRepository(ctx, log, client.Database(cfg.Mongo.Database), policy)

	return repo, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from mongo")
		}
	}
}

func newNotifier(cfg *config.AuthServiceConfig, log *zerolog.Logger) notification.Notifier {
	if !cfg.MailerEnabled {
		return notification.NewLogNotifier(log)
	}

	mailerCfg, err := mailer.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load mailer config")
	}

	m, err := mailer.NewMailer(mailerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mailer")
	}

	return notification.NewEmailNotifier(m, notification.Links{
		VerifyEmailURL:   cfg.AppVerifyEmailURL,
		PasswordResetURL: cfg.AppPasswordResetURL,
		LoginURL:         cfg.AppLoginURL,
		VerificationTTL:  cfg.Token.EmailVerificationTokenExpiresIn,
		PasswordResetTTL: cfg.Token.PasswordResetTokenExpiresIn,
	}, log)
}
