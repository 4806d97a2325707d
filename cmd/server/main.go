package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stuga/internal/api"
	"stuga/internal/cache"
	"stuga/internal/config"
	"stuga/internal/events"
	"stuga/internal/export"
	"stuga/internal/metrics"
	"stuga/internal/notify"
	"stuga/internal/remote"
	"stuga/internal/sheets"
	"stuga/internal/store"
	"stuga/internal/workflow"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("STUGA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	snapshots, err := cache.Open(cfg.Cache.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open snapshot cache error")
	}
	defer snapshots.Close()

	client := remote.New(cfg.Remote.BaseURL, cfg.Remote.AccessToken, cfg.RemoteTimeout())

	var rdb *redis.Client
	var feed *store.Feed
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		feed = store.NewFeed(rdb, cfg.RedisChannel(), &logger)
	}

	bus := events.NewBus()
	bookings := store.NewBookingStore(client, snapshots, bus, feed, &logger)
	users := store.NewUserStore(client, snapshots, &logger)

	wf := workflow.New(bookings, workflow.NewSessionStore(0), &logger)
	exporter := export.New(bookings, &logger)
	server := api.New(cfg.ServerPort(), cfg.Server.APIKey, wf, bookings, users, exporter, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if feed != nil {
		go feed.Listen(ctx, func(events.Event) {
			bookings.Refresh(ctx, "feed")
		})
	}
	go bookings.StartPolling(ctx, cfg.RefreshInterval())

	if cfg.Telegram.BotToken != "" && cfg.Telegram.FamilyChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.FamilyChatID, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier error")
		}
		schedCfg := notify.DefaultSchedulerConfig()
		if cfg.Telegram.ReminderHour > 0 {
			schedCfg.DailyHour = cfg.Telegram.ReminderHour
		}
		if cfg.Telegram.Timezone != "" {
			schedCfg.Timezone = cfg.Telegram.Timezone
		}
		scheduler, err := notify.NewScheduler(schedCfg, bookings, notifier, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("reminder scheduler error")
		}
		go scheduler.Start(ctx)
	}

	if cfg.Sheets.CredentialsFile != "" && cfg.Sheets.CalendarSpreadsheetID != "" {
		mirror, err := sheets.New(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.CalendarSpreadsheetID, bookings, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("sheets mirror error")
		}
		if err := mirror.TestConnection(); err != nil {
			logger.Warn().Err(err).Msg("sheets connection test failed, mirror may lag")
		}
		go mirror.Run(ctx, bookings)
	}

	if cfg.Backup.Enabled {
		backup := cache.NewBackupService(snapshots, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, snapshots, client, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Str("environment", cfg.App.Environment).Msg("stuga server started")
	if err := server.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, snapshots *cache.Store, client *remote.Client, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := snapshots.PingContext(ctxPing); err != nil {
			http.Error(w, "cache not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		// The remote store being down is not fatal; the cache serves reads.
		if err := client.Ping(ctxPing); err != nil {
			logger.Warn().Err(err).Msg("remote store unreachable")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
