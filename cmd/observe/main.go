package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/api"
	"github.com/luminahq/observe/internal/apicall"
	"github.com/luminahq/observe/internal/config"
	"github.com/luminahq/observe/internal/dbobs"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
	"github.com/luminahq/observe/internal/middleware"
)

func main() {
	// load config first
	log.Info().Msg("Starting observability server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	logger := logging.New(logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Service:    cfg.Service.Name,
		Env:        cfg.Service.Env,
		Production: cfg.IsProduction(),
	})

	registry := metrics.NewRegistry()
	registry.RegisterDefaults()
	trackers := alerting.NewTrackers()
	healthTracker := apicall.NewHealthTracker()
	stats := dbobs.NewStats(time.Duration(cfg.DB.SlowQueryThresholdMs) * time.Millisecond)
	dbIns := &dbobs.Instrumentor{Stats: stats, Registry: registry, Logger: logger, Trackers: trackers}

	// optional database; the server runs degraded without one
	var pool *pgxpool.Pool
	if dsn := cfg.DSN(); dsn != "" {
		poolCfg, perr := pgxpool.ParseConfig(dsn)
		if perr != nil {
			log.Error().Err(perr).Msg("invalid database config; running without database")
		} else {
			poolCfg.ConnConfig.Tracer = &dbobs.Tracer{Ins: dbIns, LogAll: cfg.DB.LogAllQueries}
			if p, derr := pgxpool.NewWithConfig(context.Background(), poolCfg); derr == nil {
				pool = p
			} else {
				log.Error().Err(derr).Msg("database pool init failed; running without database")
			}
		}
	}
	if pool != nil {
		defer pool.Close()
	}

	engine := alerting.NewEngine(logger, registry)
	engine.AddNotifier(&alerting.ConsoleNotifier{Logger: logger})
	if cfg.Alerting.WebhookURL != "" {
		engine.AddNotifier(alerting.NewWebhookNotifier(cfg.Alerting.WebhookURL))
	}
	if rdb := alerting.NewRedisClientFromConfig(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rdb != nil {
		engine.AddNotifier(&alerting.RedisNotifier{Client: rdb, Channel: cfg.Alerting.RedisChannel})
	}
	for _, r := range alerting.DefaultRules(trackers) {
		if rerr := engine.Register(r); rerr != nil {
			log.Error().Err(rerr).Str("rule", r.ID).Msg("failed to register alert rule")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go engine.Run(ctx, cfg.CheckInterval())

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.ErrorHandler(logger, registry, cfg.IsProduction()))
	router.Use(middleware.SlowRequest(
		time.Duration(cfg.HTTP.SlowRequestThresholdMs)*time.Millisecond,
		logger, registry, trackers))
	router.Use(middleware.SecurityLogging(logger, registry))
	router.Use(middleware.RequestLogging(logger, registry, trackers, cfg.IsProduction()))

	var pinger dbobs.Pinger
	if pool != nil {
		pinger = pool
	}
	surface := api.New(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Engine:   engine,
		Stats:    stats,
		Health:   healthTracker,
		DB:       pinger,
	})
	surface.RegisterRoutes(router)

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start observability server failed.")
	}
	log.Info().Msg("observability server exit...")
}
