package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lumina-backend/internal/config"
	"lumina-backend/internal/handlers"
	"lumina-backend/internal/middleware"
	"lumina-backend/internal/repository"
	"lumina-backend/internal/services"
	"lumina-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
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

	ctx := context.Background()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize the storage backend selected by configuration
	store, err := storage.New(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage backend")
	}
	defer store.Close(context.Background())
	log.Info().Str("backend", cfg.Storage.Backend).Msg("Storage backend ready")

	// Initialize services and handlers
	authService := services.NewAuthService(store, cfg.JWT.Secret)
	authHandler := handlers.NewAuthHandler(authService)
	photoHandler := handlers.NewPhotoHandler(store)
	socialHandler := handlers.NewSocialHandler(store)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Get("/users/lookup", socialHandler.LookupUser)
			r.Post("/users/profile-picture", socialHandler.UploadProfilePicture)
			r.Get("/users/{userID}/profile-picture/{variant}", socialHandler.GetProfilePicture)

			r.Get("/photos", photoHandler.ListPhotos)
			r.Post("/photos", photoHandler.UploadPhoto)
			r.Delete("/photos/{photoID}", photoHandler.DeletePhoto)
			r.Post("/photos/{photoID}/like", photoHandler.LikePhoto)
			r.Get("/photos/{photoID}/comments", photoHandler.ListComments)
			r.Post("/photos/{photoID}/comments", photoHandler.AddComment)
			r.Get("/photos/{photoID}/image/{variant}", photoHandler.GetImage)

			r.Post("/friends/request", socialHandler.SendFriendRequest)
			r.Get("/friends/requests", socialHandler.ListFriendRequests)
			r.Post("/friends/respond", socialHandler.RespondFriendRequest)
			r.Get("/friends", socialHandler.ListFriends)

			r.Get("/messages", socialHandler.ListMessages)
			r.Post("/messages", socialHandler.SendMessage)
		})
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
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
