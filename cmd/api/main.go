package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/config"
	"github.com/chachabrian/ridepool-backend/internal/database"
	"github.com/chachabrian/ridepool-backend/internal/handlers"
	"github.com/chachabrian/ridepool-backend/internal/logger"
	"github.com/chachabrian/ridepool-backend/internal/middleware"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	gin.SetMode(cfg.Server.Mode)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		return err
	}
	repos := services.NewRepos(repository.NewStore(db))

	// Redis is optional: without it nonces and revoked tokens live in memory
	// and realtime delivery stays on this instance.
	var (
		nonces   services.NonceStore    = services.NewMemoryNonceStore()
		denylist services.TokenDenylist = services.NewMemoryDenylist()
		tracker  services.PresenceTracker
		presence services.PresenceChecker
		client   *redis.Client
	)
	if cfg.Redis.URL != "" {
		client, err = services.InitRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		nonces = services.NewRedisNonceStore(client)
		denylist = services.NewRedisDenylist(client)
		p := services.NewRedisPresence(client)
		tracker, presence = p, p
	} else {
		log.Warn("REDIS_URL not set, using in-memory nonce store and local realtime delivery")
	}

	hub := services.NewHub(tracker, log)
	go hub.Run(ctx)

	var notifier services.Notifier = hub
	if client != nil {
		relay := services.NewRedisRelay(client, hub, log)
		go relay.Run(ctx)
		notifier = relay
	}

	fcm, err := services.InitFirebase(ctx, cfg.Firebase.ServiceAccountPath, log)
	if err != nil {
		log.Warn("firebase initialization failed, push notifications disabled", zap.Error(err))
		fcm, _ = services.InitFirebase(ctx, "", log)
	}

	storage, err := services.InitStorage(cfg.Storage, log)
	if err != nil {
		return err
	}

	dispatcher := services.NewPushDispatcher(repos.Users, repos.Preferences, fcm, log)
	consumer := services.Fanout(services.RealtimeHandler(notifier), dispatcher.Handle)

	var bus services.EventBus
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := services.NewRabbitBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, log)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		go func() {
			if err := rabbit.Consume(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
		bus = rabbit
	} else {
		local := services.NewLocalBus(log)
		local.Subscribe(consumer)
		defer local.Wait()
		bus = local
	}

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	deps := handlers.Deps{
		Auth:          services.NewAuthService(repos.Users, nonces, denylist, tokens, cfg.Auth.NonceTTL, log),
		Rides:         services.NewRideService(repos, bus, log),
		Bookings:      services.NewBookingService(repos, bus, log),
		Users:         services.NewUserService(repos.Users, storage, presence, log),
		Reviews:       services.NewReviewService(repos),
		Messages:      services.NewMessageService(repos, bus, log),
		Community:     services.NewCommunityService(repos),
		Governance:    services.NewGovernanceService(repos),
		Notifications: services.NewNotificationService(repos.Users, repos.Preferences, fcm, log),
		Hub:           hub,
		Location:      loc,
		IsAdmin:       cfg.IsAdmin,
		NoncesPerMin:  cfg.Auth.NoncesPerMin,
	}

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		"address", "message", "signature", middleware.RequestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	if !storage.UsingS3() {
		r.Static("/uploads", storage.UploadDir())
	}

	handlers.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
