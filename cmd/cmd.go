package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"palmlens-backend/internal/config"
	"palmlens-backend/internal/handlers"
	"palmlens-backend/internal/middleware"
	"palmlens-backend/internal/repository"
	"palmlens-backend/internal/services"
	"palmlens-backend/internal/session"
	"palmlens-backend/internal/storage"
	"palmlens-backend/internal/vision"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Run database migrations
	if err := repository.Migrate(cfg.Database.MigrateURL()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Connect to redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping redis")
	}
	log.Info().Msg("Redis connection established")

	// Initialize object storage and vision client
	images, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage gateway")
	}
	visionClient := vision.NewClient(cfg.OpenAI)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	readingRepo := repository.NewReadingRepository(db)
	horoscopeRepo := repository.NewHoroscopeRepository(db)

	// Initialize services
	sessionStore := session.NewStore(rdb, cfg.Session.TTL())
	notifyHub := services.NewNotifyHub()
	userService := services.NewUserService(userRepo, subRepo, readingRepo, cfg.JWT.Secret)
	profileService := services.NewProfileService(profileRepo, userRepo, subRepo)
	sessionService := services.NewSessionService(sessionStore, images, visionClient)
	readingService := services.NewReadingService(
		readingRepo, userRepo, profileRepo, subRepo,
		sessionStore, visionClient, images, notifyHub,
		cfg.Trial.Days,
	)
	compatService := services.NewCompatibilityService(profileRepo, readingRepo, visionClient)
	horoscopeService := services.NewHoroscopeService(horoscopeRepo, profileRepo, visionClient)
	billingService := services.NewBillingService(subRepo)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	profileHandler := handlers.NewProfileHandler(profileService)
	sessionHandler := handlers.NewSessionHandler(sessionService, cfg.Session.TTL())
	readingHandler := handlers.NewReadingHandler(readingService, userService, images)
	compatHandler := handlers.NewCompatibilityHandler(compatService, userService)
	horoscopeHandler := handlers.NewHoroscopeHandler(horoscopeService, userService)
	webhookHandler := handlers.NewWebhookHandler(billingService, cfg.Stripe.WebhookSecret)
	wsHandler := handlers.NewWebSocketHandler(notifyHub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/session/upload", sessionHandler.Upload)
		r.Get("/session", sessionHandler.Get)
		r.Post("/session/confirm", sessionHandler.Confirm)
		r.Post("/webhooks/stripe", webhookHandler.HandleStripe)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Get("/me/access", userHandler.Access)
			r.Post("/profiles", profileHandler.Create)
			r.Get("/profiles", profileHandler.List)
			r.Get("/profiles/{id}", profileHandler.Get)
			r.Get("/profiles/{id}/horoscope", horoscopeHandler.Get)
			r.Post("/readings", readingHandler.Create)
			r.Post("/readings/from-session", readingHandler.FromSession)
			r.Get("/readings", readingHandler.List)
			r.Get("/readings/{id}", readingHandler.Get)
			r.Post("/compatibility", compatHandler.Compare)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Background jobs: fail stranded readings and expire lapsed subscriptions
	scheduler := cron.New()
	scheduler.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := readingService.FailStuck(ctx, 10*time.Minute)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fail stuck readings")
			return
		}
		if n > 0 {
			log.Warn().Int64("count", n).Msg("Failed stuck readings")
		}
	})
	scheduler.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := billingService.ExpireLapsed(ctx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("Failed to expire lapsed subscriptions")
			return
		}
		if n > 0 {
			log.Info().Int64("count", n).Msg("Expired lapsed subscriptions")
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
