package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetslot/internal/api"
	"meetslot/internal/bot"
	"meetslot/internal/config"
	"meetslot/internal/database"
	"meetslot/internal/events"
	"meetslot/internal/google"
	"meetslot/internal/metrics"
	"meetslot/internal/opensheet"
	"meetslot/internal/refresh"
	"meetslot/internal/repository"
	"meetslot/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("MEETSLOT_CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}

	logger := newLogger(cfg)
	zerolog.SetGlobalLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, configPath, 30*time.Second, &logger, func(updated *config.Config) {
		zerolog.SetGlobalLevel(updated.LogLevel())
	}); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	store, err := buildStore(ctx, cfg, db, rdb, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage setup error")
	}

	var cache *repository.ResultCache
	if rdb != nil {
		cache = repository.NewResultCache(rdb, cfg.ResultsTTL())
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.PollCreated, func(e events.Event) error {
		logger.Debug().Str("poll_id", e.PollID).RawJSON("payload", e.Payload).Msg("poll created event")
		return nil
	})

	var results service.ResultsCache
	if cache != nil {
		results = cache
	}
	svc := service.NewPollService(store, results, bus, &logger)

	checks := map[string]api.Pinger{"store": store, "sqlite": db}
	if cache != nil {
		checks["redis"] = cache
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.PrometheusPort(), &logger)
	}
	go startHealthServer(ctx, cfg.HealthCheckPort(), checks, &logger)

	if cfg.Backup.Enabled {
		backups := database.NewBackupService(db, database.BackupOptions{
			Enabled:   true,
			Interval:  cfg.BackupInterval(),
			Dir:       cfg.Backup.Path,
			Retention: cfg.BackupRetention(),
		}, &logger)
		go backups.Start(ctx)
	}

	if cfg.Telegram.Enabled {
		startBot(ctx, cfg, svc, db, bus, &logger)
	}

	perSec, burst := cfg.RateLimit()
	server := api.NewServer(svc, api.Options{
		Port:           cfg.HTTPPort(),
		RateLimit:      perSec,
		RateLimitBurst: burst,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, &logger, checks)

	logger.Info().Str("backend", cfg.Storage.Backend).Bool("failover", cfg.Storage.Failover).Msg("meetslot started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("http api stopped")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.Logging.Console {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// buildStore returns the configured row store. With failover enabled the
// local database backs up a remote primary.
func buildStore(ctx context.Context, cfg *config.Config, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) (repository.Store, error) {
	var primary repository.Store

	switch cfg.Storage.Backend {
	case "sqlite":
		return db, nil
	case "sheets":
		sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, google.SheetsOptions{
			SpreadsheetID:  cfg.Google.SpreadsheetID,
			PollsSheet:     cfg.Google.PollsSheet,
			ResponsesSheet: cfg.Google.ResponsesSheet,
		}, logger)
		if err != nil {
			return nil, err
		}
		primary = sheets
	case "opensheet":
		sheet := cfg.OpenSheet
		client := opensheet.NewClient(opensheet.Options{
			BaseURL:   sheet.BaseURL,
			Polls:     opensheet.Sheet{SpreadsheetID: sheet.PollsSpreadsheetID, Name: sheet.PollsSheet},
			Responses: opensheet.Sheet{SpreadsheetID: sheet.ResponsesSpreadsheetID, Name: sheet.ResponsesSheet},
			PollsForm: opensheet.PollsForm{URL: sheet.PollsForm.URL, FieldID: sheet.PollsForm.FieldID, FieldJSON: sheet.PollsForm.FieldJSON},
			VotesForm: opensheet.VotesForm{
				URL:         sheet.VotesForm.URL,
				FieldName:   sheet.VotesForm.FieldName,
				FieldJSON:   sheet.VotesForm.FieldJSON,
				FieldPollID: sheet.VotesForm.FieldPollID,
			},
		}, logger)
		if rdb != nil {
			client.UseRedisCache(rdb, cfg.OpenSheetTTL())
		}
		primary = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Failover {
		return repository.NewFailoverStore(primary, db, logger), nil
	}
	return primary, nil
}

func startBot(ctx context.Context, cfg *config.Config, svc *service.PollService, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Warn().Msg("telegram enabled but telegram.bot_token is not set")
		return
	}

	b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, svc, db, logger)
	if err != nil {
		logger.Error().Err(err).Msg("create bot error")
		return
	}
	go b.Start(ctx)

	if !cfg.Refresh.Enabled {
		return
	}
	watcher := refresh.NewWatcher(refresh.Config{
		Interval: cfg.RefreshInterval(),
		Workers:  cfg.RefreshWorkers(),
	}, db, svc, b, logger)
	bus.Subscribe(events.ResponseSubmitted, watcher.HandleEvent)
	go watcher.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, checks map[string]api.Pinger, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check.Ping(ctxPing); err != nil {
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "metrics", logger)
}

func serve(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg(name + " server error")
	}
}
