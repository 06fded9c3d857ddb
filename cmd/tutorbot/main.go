package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/config"
	dbRedis "github.com/kailas-cloud/tutorbot/internal/db/redis"
	"github.com/kailas-cloud/tutorbot/internal/db/sqldb"
	"github.com/kailas-cloud/tutorbot/internal/domain"
	domquota "github.com/kailas-cloud/tutorbot/internal/domain/quota"
	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
	logpkg "github.com/kailas-cloud/tutorbot/internal/logger"
	"github.com/kailas-cloud/tutorbot/internal/metrics"
	sessionrepo "github.com/kailas-cloud/tutorbot/internal/repository/session"
	userrepo "github.com/kailas-cloud/tutorbot/internal/repository/user"
	"github.com/kailas-cloud/tutorbot/internal/repository/usermem"
	"github.com/kailas-cloud/tutorbot/internal/repository/usersql"
	chiTransport "github.com/kailas-cloud/tutorbot/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/tutorbot/internal/transport/openai"
	"github.com/kailas-cloud/tutorbot/internal/transport/telegram"
	adminuc "github.com/kailas-cloud/tutorbot/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/tutorbot/internal/usecase/health"
	premiumuc "github.com/kailas-cloud/tutorbot/internal/usecase/premium"
	quotauc "github.com/kailas-cloud/tutorbot/internal/usecase/quota"
	referraluc "github.com/kailas-cloud/tutorbot/internal/usecase/referral"
	resetuc "github.com/kailas-cloud/tutorbot/internal/usecase/reset"
	sessionuc "github.com/kailas-cloud/tutorbot/internal/usecase/session"
	tutoruc "github.com/kailas-cloud/tutorbot/internal/usecase/tutor"
	"github.com/kailas-cloud/tutorbot/internal/version"
)

// userStore is the union of the user contracts every backend implements.
type userStore interface {
	Create(ctx context.Context, u domuser.User) (bool, error)
	Get(ctx context.Context, id int64) (domuser.User, error)
	RolloverAllowance(ctx context.Context, id int64, dayStart, now time.Time, allowance int) (bool, error)
	ConsumeAllowance(ctx context.Context, id int64, now time.Time) (int, bool, error)
	IncrementReferrals(ctx context.Context, id int64) (int, error)
	CompareAndSetPremium(ctx context.Context, id int64, prev, next time.Time) (bool, error)
	ResetAllowances(ctx context.Context, allowance int, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// stores bundles the persistence wired for the configured driver.
type stores struct {
	users    userStore
	sessions sessionuc.Repository
	pinger   healthuc.DBPinger
	close    func()
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tutorbot",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("telegram", cfg.Telegram.Token != ""),
	)

	loc, err := cfg.Quota.Location()
	if err != nil {
		logger.Fatal("Invalid timezone", zap.Error(err))
	}
	policy, err := domquota.NewPolicy(cfg.Quota.FreeDailyLimit, loc)
	if err != nil {
		logger.Fatal("Invalid quota policy", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open stores", zap.Error(err))
	}
	defer st.close()
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	// Register metrics explicitly (no init())
	metrics.RegisterQuotaMetrics()
	metrics.RegisterCompletionMetrics()
	metrics.RegisterHTTPMetrics()

	clock := domain.SystemClock{}

	completer := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		Model:           cfg.AI.Model,
		MaxTokens:       cfg.AI.MaxTokens,
		VisionMaxTokens: cfg.AI.VisionMaxTokens,
		Temperature:     cfg.AI.Temperature,
		Provider:        "openai",
		Logger:          logger,
	})

	// Use case services
	quotaSvc := quotauc.New(st.users, policy, clock, cfg.Quota.ReferralsForPremium, logger)
	premiumSvc := premiumuc.New(st.users, clock, logger)
	referralSvc := referraluc.New(st.users, premiumSvc, clock, referraluc.Config{
		FreeDailyLimit:      cfg.Quota.FreeDailyLimit,
		ReferralsForPremium: cfg.Quota.ReferralsForPremium,
		PremiumDays:         cfg.Quota.PremiumDays,
	}, logger)
	resetSvc := resetuc.NewService(st.users, policy, clock, logger)
	adminSvc := adminuc.New(resetSvc, st.users, cfg.Telegram.AdminIDs, logger)
	sessionSvc := sessionuc.New(st.sessions, clock, cfg.Session.MaxHistory)
	tutorSvc := tutoruc.New(quotaSvc, sessionSvc, completer, logger)
	healthSvc := healthuc.New(st.pinger, completer)

	var wg sync.WaitGroup

	scheduler := resetuc.NewScheduler(resetSvc, policy, clock, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(telegram.Config{
			Token:               cfg.Telegram.Token,
			BotUsername:         cfg.Telegram.BotUsername,
			ChannelID:           cfg.Telegram.ChannelID,
			ChannelInviteLink:   cfg.Telegram.ChannelInviteLink,
			FreeDailyLimit:      cfg.Quota.FreeDailyLimit,
			ReferralsForPremium: cfg.Quota.ReferralsForPremium,
			Location:            policy.Location(),
		}, telegram.Services{
			Onboarding: referralSvc,
			Profiles:   quotaSvc,
			Tutor:      tutorSvc,
			Sessions:   sessionSvc,
			Admin:      adminSvc,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram bot", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				logger.Error("Telegram bot stopped", zap.Error(err))
			}
		}()
	}

	// HTTP server
	server := chiTransport.NewServer(quotaSvc, referralSvc, adminSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	// Stop the scheduler and the poller first so no new work is admitted.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("Server stopped gracefully", zap.String("scheduler_state", scheduler.State().String()))
}

// openStores connects the user and session stores for the configured driver.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	sessionTTL := cfg.Session.TTL()

	switch {
	case cfg.Database.IsKeyValue():
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return stores{}, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return stores{}, fmt.Errorf("database not ready: %w", err)
		}
		return stores{
			users:    userrepo.New(store, cfg.Storage.KeyPrefix),
			sessions: sessionrepo.New(store, cfg.Storage.KeyPrefix, sessionTTL),
			pinger:   store,
			close:    store.Close,
		}, nil

	case cfg.Database.IsSQL():
		store, err := sqldb.Open(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
		if err != nil {
			return stores{}, err
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return stores{}, fmt.Errorf("database not ready: %w", err)
		}
		users := usersql.New(store.DB())
		if err := users.Migrate(ctx); err != nil {
			store.Close()
			return stores{}, err
		}
		return stores{
			users:    users,
			sessions: sessionrepo.NewMemory(sessionTTL, time.Now),
			pinger:   store,
			close:    store.Close,
		}, nil

	default:
		users := usermem.New()
		return stores{
			users:    users,
			sessions: sessionrepo.NewMemory(sessionTTL, time.Now),
			pinger:   users,
			close:    func() {},
		}, nil
	}
}
