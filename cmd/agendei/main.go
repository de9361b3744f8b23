package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"agendei/internal/api"
	"agendei/internal/clock"
	"agendei/internal/config"
	"agendei/internal/database"
	"agendei/internal/events"
	"agendei/internal/metrics"
	"agendei/internal/schedule"
	"agendei/internal/service"
	"agendei/internal/session"
	"agendei/internal/slots"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("AGENDEI_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	loc := cfg.Location()

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := slots.Options{
		Step:             cfg.SlotStep(),
		Lookahead:        cfg.Lookahead(),
		FallbackDuration: cfg.FallbackDuration(),
	}
	bus := events.NewEventBus(&logger)
	audit := db.AuditHandler(ctx)
	for _, eventType := range events.BookingEvents {
		bus.Subscribe(eventType, func(e events.Event) error {
			logger.Debug().Str("event", e.Type).Int64("business_id", e.BusinessID).Msg("Booking event")
			return audit(e)
		})
	}
	svc := service.NewBookingService(db, bus, slots.NewGenerator(schedule.NewResolver(loc, nil), opts), clock.System{}, cfg.MaxAdvance(), &logger)

	err = config.WatchBusinesses(ctx, cfg.Businesses.Path, cfg.BusinessesReloadInterval(), &logger, func(bc *config.BusinessesConfig) {
		for _, w := range bc.Warnings() {
			logger.Warn().Str("warning", w).Msg("Businesses config")
		}
		if err := db.SyncBusinessesFromConfig(ctx, bc); err != nil {
			logger.Error().Err(err).Msg("Businesses sync failed")
			return
		}
		svc.UseGenerator(slots.NewGenerator(schedule.NewResolver(loc, bc.Presets), opts))
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("load businesses config error")
	}

	sessions, rdb := newSessionStore(ctx, cfg, &logger)
	if rdb != nil {
		defer rdb.Close()
	}

	backups := database.NewBackupService(db, cfg.Backup, &logger)
	if err := backups.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("backup service error")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if !cfg.API.Enabled {
		logger.Info().Msg("API disabled, serving health and metrics only")
		<-ctx.Done()
		return
	}

	server := api.NewHTTPServer(api.Options{
		Port:           cfg.API.Port,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
	}, svc, sessions, loc, &logger)
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("timezone", loc.String()).Msg("agendei started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

// newSessionStore prefers Redis when configured and keeps an in-memory store
// as fallback.
func newSessionStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (session.Store, *redis.Client) {
	memory := session.NewMemoryStore(cfg.SessionTTL(), clock.System{})
	memory.StartCleanup(ctx, time.Minute, logger)
	if cfg.Redis.Address == "" {
		return memory, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	primary := session.NewRedisStore(rdb, cfg.SessionTTL(), cfg.Session.KeyPrefix)
	return session.NewFailoverStore(primary, memory, logger), rdb
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.Ready(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		// Redis is optional: sessions fall back to memory.
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				logger.Warn().Err(err).Msg("redis unreachable, sessions in memory")
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
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
