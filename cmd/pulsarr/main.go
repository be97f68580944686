package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jamcalli/Pulsarr-sub011/internal/api"
	"github.com/jamcalli/Pulsarr-sub011/internal/auth"
	"github.com/jamcalli/Pulsarr-sub011/internal/config"
	"github.com/jamcalli/Pulsarr-sub011/internal/crypto"
	"github.com/jamcalli/Pulsarr-sub011/internal/database"
	"github.com/jamcalli/Pulsarr-sub011/internal/defaults"
	"github.com/jamcalli/Pulsarr-sub011/internal/health"
	"github.com/jamcalli/Pulsarr-sub011/internal/history"
	"github.com/jamcalli/Pulsarr-sub011/internal/instances"
	"github.com/jamcalli/Pulsarr-sub011/internal/logger"
	"github.com/jamcalli/Pulsarr-sub011/internal/plex"
	"github.com/jamcalli/Pulsarr-sub011/internal/radarr"
	"github.com/jamcalli/Pulsarr-sub011/internal/router"
	"github.com/jamcalli/Pulsarr-sub011/internal/router/evaluators"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler"
	"github.com/jamcalli/Pulsarr-sub011/internal/scheduler/tasks"
	"github.com/jamcalli/Pulsarr-sub011/internal/sonarr"
	"github.com/jamcalli/Pulsarr-sub011/internal/startup"
	"github.com/jamcalli/Pulsarr-sub011/internal/watchlist"
	"github.com/jamcalli/Pulsarr-sub011/internal/websocket"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	migrateCmd := flag.String("migrate", "", "Run a migration command (down, status) and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().Str("logLevel", cfg.Logging.Level).Msg("starting Pulsarr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	switch *migrateCmd {
	case "":
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatal().Err(err).Msg("failed to rollback migration")
		}
		return
	case "status":
		if err := db.MigrationStatus(); err != nil {
			log.Fatal().Err(err).Msg("failed to read migration status")
		}
		return
	default:
		log.Fatal().Str("migrate", *migrateCmd).Msg("unknown migrate command")
	}

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	hub := websocket.NewHub()
	go hub.Run()
	log.SetBroadcastHub(hub)

	// Stores and routing targets
	ruleStore := router.NewStore(db.Conn(), log.Logger)
	instanceStore := instances.NewStore(db.Conn(), log.Logger)
	if cfg.Auth.EncryptionKey != "" {
		salt, err := loadOrCreateSalt(db)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize encryption salt")
		}
		instanceStore.SetSecretStore(crypto.NewSecretStore(cfg.Auth.EncryptionKey, salt))
		log.Info().Msg("instance API key encryption enabled")
	}
	radarrService := radarr.NewService(instanceStore, log.Logger)
	sonarrService := sonarr.NewService(instanceStore, log.Logger)

	routerService := router.NewService(router.ServiceConfig{
		Evaluators: evaluators.All(ruleStore, log.Logger),
		Movies:     radarrService,
		Series:     sonarrService,
		Instances:  instanceStore,
		Disabled:   cfg.Router.DisabledEvaluators,
		Hub:        hub,
		Logger:     log.Logger,
	})

	historyService := history.NewService(db.Conn(), log.Logger)

	defaultsService := defaults.NewService(ruleStore, instanceStore, log.Logger)
	if err := defaultsService.Seed(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to seed default rules")
	}

	authService, err := auth.NewService(db.Conn(), cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth service")
	}

	var plexClient *plex.Client
	if cfg.Plex.Token != "" {
		plexClient, err = plex.NewClient(plex.ClientConfig{
			Token:  cfg.Plex.Token,
			Logger: log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize plex client")
		}
	} else {
		log.Warn().Msg("no plex token configured, watchlist sync disabled")
	}

	if plexClient != nil {
		// Verify the token in the background; transient network failures
		// at boot retry with backoff instead of failing startup.
		go func() {
			_ = startup.WithRetry(context.Background(), "plex account check",
				startup.DefaultRetryConfig(), func() error {
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					_, err := plexClient.Account(ctx)
					return err
				}, &log.Logger)
		}()
	}

	var watchlistService *watchlist.Service
	if plexClient != nil {
		watchlistService = watchlist.NewService(plexClient, routerService, historyService, hub, log.Logger)
	} else {
		watchlistService = watchlist.NewService(nil, routerService, historyService, hub, log.Logger)
	}

	healthService := health.NewService(log.Logger)
	healthService.SetBroadcaster(hub)
	healthChecker := health.NewChecker(healthService, instanceStore, radarrService, sonarrService, log.Logger)
	if plexClient != nil {
		healthChecker.SetPlexChecker(plexClient)
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	if cfg.Plex.Token != "" {
		if err := tasks.RegisterWatchlistSyncTask(sched, watchlistService, &cfg.Sync); err != nil {
			log.Fatal().Err(err).Msg("failed to register watchlist sync task")
		}
	}
	if err := tasks.RegisterHistoryCleanupTask(sched, historyService); err != nil {
		log.Fatal().Err(err).Msg("failed to register history cleanup task")
	}
	if err := tasks.RegisterHealthCheckTask(sched, healthChecker); err != nil {
		log.Fatal().Err(err).Msg("failed to register health check task")
	}

	hub.SetSyncHandler(func() error {
		go func() {
			if _, err := watchlistService.Sync(context.Background()); err != nil {
				log.Error().Err(err).Msg("watchlist sync failed")
			}
		}()
		return nil
	})

	server := api.NewServer(hub, cfg, api.Services{
		Auth:          authService,
		RouterService: routerService,
		RuleStore:     ruleStore,
		Instances:     instanceStore,
		History:       historyService,
		Watchlist:     watchlistService,
		Scheduler:     sched,
		Health:        healthService,
		HealthChecker: healthChecker,
		Logs:          log,
	}, log.Logger)

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

const saltSettingKey = "secrets.salt"

// loadOrCreateSalt returns the persisted key derivation salt, generating
// and storing one on first use.
func loadOrCreateSalt(db *database.DB) ([]byte, error) {
	ctx := context.Background()

	value, err := db.Setting(ctx, saltSettingKey)
	if err == nil {
		return base64.StdEncoding.DecodeString(value)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := db.SetSetting(ctx, saltSettingKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}
