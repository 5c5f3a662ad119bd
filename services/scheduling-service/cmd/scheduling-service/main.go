package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/config"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/db"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/httpx"
	otelx "github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/otel"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/runtime"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/batch"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/checkin"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/handlers"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/outbox"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/replay"
	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/services/scheduling-service/internal/storage"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.ShutdownContext(context.Background(), logger)
	defer stop()

	loc := runtime.Location(config.String("CLINIC_TIMEZONE", ""))
	clock := func() time.Time { return time.Now().In(loc) }

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		panic(err)
	}
	otelCfg.Attributes = map[string]string{"clinic.timezone": loc.String()}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	store := storage.NewStore(pool)

	outboxPublisher := outbox.NewPublisher(pool, store.Outbox(), logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	backend, err := newAgendaBackend(ctx, store, logger)
	if err != nil {
		logger.Error("agenda backend init failed", "err", err)
		panic(err)
	}
	defer backend.close()

	slotMinutes, err := config.Int("APPOINTMENT_SLOT_MINUTES", 60)
	if err != nil {
		panic(err)
	}
	maxInFlight, err := config.Int("BATCH_MAX_IN_FLIGHT", 0)
	if err != nil {
		panic(err)
	}
	scheduler := batch.New(backend.provider, logger, batch.Config{
		SlotDuration: time.Duration(slotMinutes) * time.Minute,
		MaxInFlight:  maxInFlight,
		Now:          clock,
	})

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: outboxPublisher.ReadyCheck(), Optional: true},
	}
	if backend.ready != nil {
		checks = append(checks, *backend.ready)
	}

	deps := handlers.Deps{
		CheckIn:   checkin.NewService(store, logger),
		Scheduler: scheduler,
		Recorder:  store,
		Logger:    logger,
		Now:       clock,
	}

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	var limiter httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		deps.Replay = replay.NewStore(rdb, replay.DefaultTTL)
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: replay.ReadyCheck(rdb), Optional: true})
	} else {
		logger.Warn("REDIS_ADDR not set; idempotency replay disabled, rate limiting per replica")
		limiter = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewSchedulingHandler(deps).Register(mux)

	requestTimeout, err := config.Duration("HTTP_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		panic(err)
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, httpx.AccessLogOptions{Quiet: []string{"/healthz", "/readyz"}}),
		httpx.WithCORS(httpx.ClinicCORSPolicy(config.List("CORS_ORIGINS"))),
		limiter,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

