package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"google.golang.org/grpc"

	"salonbook/backend/internal/config"
	"salonbook/backend/internal/metrics"
	"salonbook/backend/internal/service/appointments"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/schedules"
	"salonbook/backend/internal/store/postgres"
	"salonbook/backend/internal/store/rediscache"
	grpcTransport "salonbook/backend/internal/transport/grpc"
	"salonbook/backend/internal/transport/rest"
)

const serviceName = "salonbook-server"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr()),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("time_zone", cfg.Location.String()),
		slog.Duration("slot_granularity", cfg.SlotGranularity),
		slog.String("log_level", cfg.LogLevel),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.Open(openCtx, cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       cfg.DBSlowQuery,
		Logger:          log,
	})
	cancelOpen()
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	staffRepo := postgres.NewStaffRepo(db)
	scheduleRepo := postgres.NewScheduleRepo(db)
	appointmentRepo := postgres.NewAppointmentRepo(db)

	probes := []grpcTransport.Probe{
		{Name: "database", Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
	}

	var (
		invalidator schedules.Invalidator
		availOpts   = availability.Options{Granularity: cfg.SlotGranularity, Location: cfg.Location}
		apptOpts    = appointments.Options{Granularity: cfg.SlotGranularity, Location: cfg.Location}
	)

	if cfg.RedisAddr != "" {
		client := rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		cache := rediscache.New(client, cfg.SlotCacheTTL)

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable; availability will be computed on every request", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		}
		cancel()

		invalidator = cache
		availOpts.Cache = cache
		probes = append(probes, grpcTransport.Probe{Name: "redis", Check: cache.Ping})
		log.Info("availability cache enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.SlotCacheTTL))
	}

	routerCfg := rest.RouterConfig{
		RequestTimeout: cfg.HTTPRequestTimeout,
		BookingLimiter: rest.NewRateLimiter(rest.RateLimiterConfig{
			PerMinute:      cfg.BookingRateLimit,
			Burst:          cfg.BookingBurst,
			TrustedProxies: cfg.TrustedProxies,
		}, log),
	}
	if cfg.MetricsEnabled {
		collector := metrics.New(nil, serviceName)
		availOpts.Recorder = collector
		apptOpts.Recorder = collector
		routerCfg.Metrics = collector
		routerCfg.MetricsPath = cfg.MetricsPath
		log.Info("prometheus metrics exposed", slog.String("path", cfg.MetricsPath))
	}

	scheduleSvc := schedules.NewService(staffRepo, scheduleRepo, invalidator, log)
	availabilitySvc := availability.NewService(scheduleSvc, appointmentRepo, availOpts, log)
	appointmentSvc := appointments.NewService(appointmentRepo, staffRepo, scheduleSvc, availabilitySvc, apptOpts, log)

	handler := rest.NewHandler(scheduleSvc, availabilitySvc, appointmentSvc, cfg.Location, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           rest.NewRouter(handler, routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.HTTPRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := grpcTransport.NewHealthServer(cfg.HealthProbePeriod, log, probes...)
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcTransport.UnaryTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go health.Run(ctx)

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr()), slog.String("grpc_addr", cfg.GRPCAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, h *http.Server, g *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		g.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("servers stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		g.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
