package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quanla93/solar-monitoring-system/internal/cache"
	"github.com/quanla93/solar-monitoring-system/internal/config"
	"github.com/quanla93/solar-monitoring-system/internal/httpapi"
	"github.com/quanla93/solar-monitoring-system/internal/mqtt"
	"github.com/quanla93/solar-monitoring-system/internal/observability"
	"github.com/quanla93/solar-monitoring-system/internal/pipeline"
	"github.com/quanla93/solar-monitoring-system/internal/scheduler"
	"github.com/quanla93/solar-monitoring-system/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	for key, val := range map[string]string{
		"MQTT_BROKER_URL": cfg.MQTTBrokerURL,
		"POSTGRES_USER":   cfg.Postgres.User,
		"POSTGRES_DB":     cfg.Postgres.DBName,
		"POSTGRES_HOST":   cfg.Postgres.Host,
		"POSTGRES_PORT":   cfg.Postgres.Port,
	} {
		if strings.TrimSpace(val) == "" {
			slog.Error("missing required env", "key", key)
			os.Exit(1)
		}
	}

	db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	historyRepo, err := store.NewHistoryRepo(db)
	if err != nil {
		slog.Error("history migrate failed", "error", err)
		os.Exit(1)
	}
	stagingRepo, err := store.NewStagingRepo(db)
	if err != nil {
		slog.Error("staging migrate failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	metricsCache := cache.NewMetrics(rdb)
	realtimeCache := cache.NewRealtime(rdb)

	orch := pipeline.New(stagingRepo, metricsCache, historyRepo,
		pipeline.WithRealtimeCache(realtimeCache))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
	if err != nil {
		slog.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := bus.Subscribe(cfg.MetricsTopic, func(payload []byte) {
		orch.ProcessRealTimeData(ctx, string(payload))
	}); err != nil {
		slog.Error("mqtt subscribe failed", "topic", cfg.MetricsTopic, "error", err)
		os.Exit(1)
	}
	slog.Info("streaming ingest subscribed", "topic", cfg.MetricsTopic)

	sched := scheduler.New(orch, historyRepo, cfg.RetentionDays)
	if err := sched.Start(cfg.SyncSchedule, cfg.PurgeSchedule); err != nil {
		slog.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	api := httpapi.New(metricsCache, historyRepo, orch, stagingRepo, bus, cfg.MetricsTopic)
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.Handle("/", api.Handler())
	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("solar-monitor listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
