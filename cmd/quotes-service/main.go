package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/quotes-service/internal/cache"
	"github.com/pribylovaa/quotes-service/internal/config"
	"github.com/pribylovaa/quotes-service/internal/events"
	qhttp "github.com/pribylovaa/quotes-service/internal/http"
	"github.com/pribylovaa/quotes-service/internal/http/middleware"
	"github.com/pribylovaa/quotes-service/internal/pkg/tracing"
	"github.com/pribylovaa/quotes-service/internal/service"
	"github.com/pribylovaa/quotes-service/internal/token"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	// .env необязателен: в контейнере переменные приходят из окружения.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv_load_failed", slog.String("err", err.Error()))
	}

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting quotes-service", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	tr, err := tracing.Setup(rootCtx, cfg.Tracing)
	if err != nil {
		log.Error("tracing_setup_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if tr.Enabled() {
		log.Info("tracing_enabled", slog.String("endpoint", cfg.Tracing.Endpoint))
	}

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 30*time.Second)
	str, err := openStorage(dbCtx, cfg.DB.DatabaseURL, log)
	dbCancel()
	if err != nil {
		log.Error("storage_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	tokens, err := token.New(cfg.Auth)
	if err != nil {
		log.Error("token_issuer_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	srvc := service.New(str, tokens, cfg.Auth)

	if cfg.Redis.RedisURL != "" {
		redisCtx, redisCancel := context.WithTimeout(rootCtx, 5*time.Second)
		limiter, err := cache.NewLoginLimiter(redisCtx, cfg.Redis.RedisURL, cfg.Redis.LoginAttempts, cfg.Redis.LoginWindow)
		redisCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer limiter.Close()

		srvc.SetLoginLimiter(limiter)
		log.Info("redis_connected", slog.Int64("login_attempts", cfg.Redis.LoginAttempts))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewAsync(
			events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			cfg.Kafka.QueueSize,
			cfg.Timeouts.Service,
		)
		defer pub.Close()

		srvc.SetPublisher(pub)
		log.Info("kafka_publisher_enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	log.Info("service_initialized")

	// Фоновая очистка просроченных сессий.
	startSessionJanitor(rootCtx, srvc, log, cfg.Janitor.Period)

	var ready atomic.Bool

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	api := qhttp.NewRouter(srvc, qhttp.Options{
		Logger:    log,
		Timeout:   cfg.Timeouts.Service,
		BodyLimit: cfg.HTTP.BodyLimit,
		Cookie:    cfg.Cookie,
		CORS:      cfg.CORS,
		Metrics:   middleware.NewMetrics(reg),
		Store:     str,
		Ready:     ready.Load,
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           tr.Handler(api, "quotes-service"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics_listen_start", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_serve_failed", slog.String("err", err.Error()))
		}
	}()

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		_ = str.Close(context.Background())
		os.Exit(1)
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)
	log.Info("service_ready")

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	_ = metricsSrv.Shutdown(shutdownCtx)

	if err := tr.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracing_shutdown_failed", slog.String("err", err.Error()))
	}

	if err := str.Close(shutdownCtx); err != nil {
		log.Warn("storage_close_failed", slog.String("err", err.Error()))
	}

	log.Info("service_stopped")
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// sessionCleaner — то, что нужно janitor'у от сервиса.
type sessionCleaner interface {
	ClearExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// startSessionJanitor периодически снимает просроченные refresh-сессии.
func startSessionJanitor(ctx context.Context, svc sessionCleaner, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := svc.ClearExpiredSessions(ctx, time.Now().UTC())
				if err != nil {
					log.Error("session_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("session_janitor_cleared", slog.Int64("count", n))
				}
			}
		}
	}()
}
