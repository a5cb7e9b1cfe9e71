package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"propertyhub/internal/auth"
	"propertyhub/internal/booking"
	"propertyhub/internal/cache"
	"propertyhub/internal/cleanup"
	"propertyhub/internal/config"
	"propertyhub/internal/database"
	"propertyhub/internal/favorites"
	"propertyhub/internal/handlers"
	"propertyhub/internal/listing"
	"propertyhub/internal/logging"
	"propertyhub/internal/notify"
	"propertyhub/internal/properties"
	"propertyhub/internal/ratelimit"
	"propertyhub/internal/scheduler"
	"propertyhub/internal/search"
	"propertyhub/internal/sideeffect"
	"propertyhub/internal/snapshot"
	"propertyhub/internal/social"
	"propertyhub/internal/storage"
	"propertyhub/internal/users"
)

const socialTokensKey = "propertyhub:social:tokens"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	configPath := getEnv("CONFIG_PATH", "config/app.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", configPath, err)
	}

	logger, err := logging.New(appConfig.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	loc := time.UTC
	if appConfig.Timezone != "" {
		if loc, err = time.LoadLocation(appConfig.Timezone); err != nil {
			logger.Fatal("invalid timezone", zap.String("timezone", appConfig.Timezone), zap.Error(err))
		}
	}

	store, err := openStore(appConfig, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		logger.Fatal("failed to initialize schema", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Image storage
	storageCfg := appConfig.Storage
	images, err := storage.Connect(startCtx, storage.Config{
		URI:           getEnvOrConfig(storageCfg.MongoURI, "MONGO_URI", "mongodb://localhost:27017"),
		Database:      storageCfg.Database,
		Bucket:        storageCfg.Bucket,
		PublicBaseURL: storageCfg.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal("failed to connect to image storage", zap.Error(err))
	}
	defer images.Close(context.Background())

	// Initialize Meilisearch using config
	searchClient := search.NewSearchClient(
		getEnvOrConfig(appConfig.Search.Meilisearch.Host, "MEILISEARCH_HOST", "http://localhost:7700"),
		getEnvOrConfig(appConfig.Search.Meilisearch.APIKey, "MEILISEARCH_KEY", ""),
	)
	if err := searchClient.InitIndex(); err != nil {
		logger.Warn("failed to initialize search index", zap.Error(err))
	}

	socialClient := newSocialClient(startCtx, appConfig, logger)

	// Outbound messaging
	mailCfg := appConfig.Mail
	mailer := notify.NewMailer(notify.MailConfig{
		Host:     getEnvOrConfig(mailCfg.Host, "SMTP_HOST", "localhost"),
		Port:     mailCfg.Port,
		Username: getEnvOrConfig(mailCfg.Username, "SMTP_USERNAME", ""),
		Password: getEnvOrConfig(mailCfg.Password, "SMTP_PASSWORD", ""),
		From:     mailCfg.From,
	})
	whatsapp := notify.NewWhatsApp(notify.WhatsAppConfig{
		BaseURL: appConfig.WhatsApp.BaseURL,
		Token:   getEnvOrConfig(appConfig.WhatsApp.Token, "WHATSAPP_TOKEN", ""),
		Sender:  appConfig.WhatsApp.Sender,
		Timeout: appConfig.Booking.SideEffectTimeout(),
	})
	notifier := notify.NewNotifier(mailer, whatsapp, logger)

	// Domain services
	effects := sideeffect.NewRunner(logger, appConfig.Booking.SideEffectTimeout())

	jwtSecret := getEnvOrConfig(appConfig.Auth.JWTSecret, "JWT_SECRET", "")
	if jwtSecret == "" {
		logger.Fatal("auth.jwt_secret or JWT_SECRET must be set")
	}
	issuer := auth.NewTokenIssuer(jwtSecret, appConfig.Auth.TokenTTL())
	authn := auth.NewAuthenticator(issuer, store)

	workflow := booking.NewWorkflow(store, notifier, effects, logger)
	snapshotService := snapshot.NewService(store)
	propagator := listing.NewPropagator(store, images, socialClient, notifier, searchClient, snapshotService, effects, listing.Config{
		FrontendURL:        appConfig.FrontendURL,
		PreferStoredPostID: appConfig.Social.PreferStoredPostID,
		NotifyConcurrency:  appConfig.Booking.NotifyConcurrency,
	}, logger)
	listings := listing.NewService(propagator)
	userService := users.NewService(store, issuer, appConfig.Booking.PhoneRegion, logger)
	favoriteService := favorites.NewService(store)
	query := properties.NewQuery(store, searchClient, appConfig.PageSize)
	cleanupService := cleanup.NewService(store, images, searchClient, effects, logger)

	propertyCache := cache.NewPropertyCache(appConfig.Cache.MaxEntries, appConfig.Cache.TTL())
	defer propertyCache.Stop()

	// Initialize rate limiter
	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.RequestsPerDay,
		appConfig.RateLimit.Enabled,
	)
	logger.Info("rate limiter initialized",
		zap.Int("per_minute", appConfig.RateLimit.RequestsPerMinute),
		zap.Int("per_hour", appConfig.RateLimit.RequestsPerHour),
		zap.Int("per_day", appConfig.RateLimit.RequestsPerDay),
		zap.Bool("enabled", appConfig.RateLimit.Enabled),
	)

	// Initialize and start scheduler
	appScheduler := scheduler.NewScheduler(appConfig.Scheduler, loc, socialClient, store, searchClient, logger)
	if err := appScheduler.Start(); err != nil {
		logger.Warn("failed to start scheduler", zap.Error(err))
	}

	maxUpload := appConfig.Server.MaxUploadMB << 20
	secure := appConfig.Server.SecureCookies
	r := newRouter(routerDeps{
		corsOrigins: appConfig.Server.CORSOrigins,
		authn:       authn,
		limiter:     rateLimiter,
		properties:  handlers.NewPropertyHandler(query, listings, propertyCache, maxUpload, logger),
		bookings:    handlers.NewBookingHandler(workflow, logger),
		users:       handlers.NewUserHandler(userService, favoriteService, authn, secure, logger),
		media:       handlers.NewMediaHandler(images, logger),
		admin: handlers.NewAdminHandler(query, listings, snapshotService, cleanupService,
			userService, appScheduler, propertyCache, logger),
	})

	srv := &http.Server{
		Addr:              ":" + getEnv("PORT", appConfig.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepRateLimiter(ctx, rateLimiter)

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	appScheduler.Stop()
	// Detached side effects get to finish before the stores close
	effects.Wait()
	logger.Info("server stopped")
}

// openStore connects to the configured database
func openStore(appConfig *config.Config, logger *zap.Logger) (database.Store, error) {
	dbType := getEnv("DB_TYPE", appConfig.Database.Type)

	switch dbType {
	case "mysql":
		logger.Info("using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL

		// Get port as string, handle 0 as empty
		portStr := ""
		if mysqlCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", mysqlCfg.Port)
		}

		return database.NewGormDB(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portStr, "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "propertyhub"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "propertyhub"),
		)
	case "postgres":
		logger.Info("using PostgreSQL")
		pgCfg := appConfig.Database.Postgres

		portStr := ""
		if pgCfg.Port > 0 {
			portStr = fmt.Sprintf("%d", pgCfg.Port)
		}

		return database.NewDB(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portStr, "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "propertyhub"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "propertyhub"),
			getEnvOrConfig(pgCfg.SSLMode, "DB_SSLMODE", "disable"),
		)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// newSocialClient builds the page client. Tokens renewed by the scheduler
// are kept in Redis when it is configured so restarts pick them up.
func newSocialClient(ctx context.Context, appConfig *config.Config, logger *zap.Logger) *social.Client {
	socialCfg := appConfig.Social

	var tokenStore social.TokenStore
	if addr := getEnvOrConfig(appConfig.Redis.Addr, "REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: appConfig.Redis.Password,
			DB:       appConfig.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, social tokens will not persist", zap.String("addr", addr), zap.Error(err))
		} else {
			tokenStore = social.NewRedisTokenStore(rdb, socialTokensKey)
		}
	}

	tokens := social.NewTokenHolder(social.Tokens{
		UserToken: getEnvOrConfig(socialCfg.UserToken, "FB_USER_TOKEN", ""),
		PageToken: getEnvOrConfig(socialCfg.PageToken, "FB_PAGE_TOKEN", ""),
	}, tokenStore)
	if restored, err := tokens.Restore(ctx); err != nil {
		logger.Warn("failed to restore social tokens", zap.Error(err))
	} else if restored {
		logger.Info("restored persisted social tokens")
	}

	return social.NewClient(social.Config{
		BaseURL:   socialCfg.GraphURL,
		PageID:    socialCfg.PageID,
		AppID:     socialCfg.AppID,
		AppSecret: getEnvOrConfig(socialCfg.AppSecret, "FB_APP_SECRET", ""),
		Timeout:   appConfig.Booking.SideEffectTimeout(),
	}, tokens, logger)
}

// sweepRateLimiter drops idle clients once an hour
func sweepRateLimiter(ctx context.Context, rl *ratelimit.RateLimiter) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
