package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	_ "github.com/jsvoboda/notes-api/docs" // Swagger docs (generated)
	"github.com/jsvoboda/notes-api/internal/auth"
	"github.com/jsvoboda/notes-api/internal/config"
	"github.com/jsvoboda/notes-api/internal/database"
	"github.com/jsvoboda/notes-api/internal/email"
	httpServer "github.com/jsvoboda/notes-api/internal/http"
	"github.com/jsvoboda/notes-api/internal/logging"
	"github.com/jsvoboda/notes-api/internal/metrics"
	"github.com/jsvoboda/notes-api/internal/note"
	"github.com/jsvoboda/notes-api/internal/ratelimit"
	"github.com/jsvoboda/notes-api/internal/user"
)

// @title           Notes API
// @version         1.0
// @description     REST API with OTP email authentication, Google sign-in, and per-user notes.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_scheme", cfg.Auth.TokenScheme,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Apply pending schema migrations
	if err := database.RunMigrations(cfg.Database.MigrationsDir, cfg.Database.URL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Register Prometheus collectors
	metrics.Init()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	noteRepo := note.NewRepository(db)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize token services, one per secret
	accessTokens, err := newTokenService(cfg.Auth.TokenScheme, cfg.Auth.AccessSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize access token service: %w", err)
	}
	refreshTokens, err := newTokenService(cfg.Auth.TokenScheme, cfg.Auth.RefreshSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize refresh token service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
	)

	// Initialize Google OAuth service
	googleService := auth.NewGoogleService(cfg.Google)

	// Initialize auth service
	authService := auth.NewService(
		userRepo,
		accessTokens,
		refreshTokens,
		emailService,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)

	cookieCfg := auth.CookieConfig{
		Secure:   !cfg.Server.IsDevelopment(),
		SameSite: cfg.Auth.CookieSameSite,
	}

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		googleService,
		rateLimiter,
		logger,
		cookieCfg,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
		cfg.Server.FrontendURL,
	)
	authMiddleware := auth.NewMiddleware(accessTokens)

	noteService := note.NewService(noteRepo)
	noteHandler := note.NewHandler(noteService, logger)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, noteHandler, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func newTokenService(scheme string, secret []byte) (auth.TokenService, error) {
	switch scheme {
	case config.TokenSchemePaseto:
		return auth.NewPasetoService(secret)
	default:
		return auth.NewJWTService(secret)
	}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
