package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/agendaslug/agenda/libs/config"
	"github.com/agendaslug/agenda/libs/httpx"
	"github.com/agendaslug/agenda/libs/kafkax"
	otelx "github.com/agendaslug/agenda/libs/otel"
	"github.com/agendaslug/agenda/libs/runtime"
	"github.com/agendaslug/agenda/services/slots-service/internal/availability"
	"github.com/agendaslug/agenda/services/slots-service/internal/backend"
	"github.com/agendaslug/agenda/services/slots-service/internal/events"
	"github.com/agendaslug/agenda/services/slots-service/internal/handlers"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "slots-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9095")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	client, err := backend.NewClient(backend.ClientConfig{
		BaseURL: config.String("BACKEND_URL", "http://localhost:4000"),
		Timeout: config.Seconds("BACKEND_TIMEOUT_SECONDS", 5*time.Second),
	})
	if err != nil {
		logger.Error("backend client config invalid", "err", err)
		return
	}

	grpcSrv, err := startGRPC(logger, ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		return
	}

	checks := []runtime.ReadyCheck{
		{Name: "backend", Check: client.Ping},
		{Name: "grpc", Check: grpcSrv.readyCheck},
	}

	var emitter events.Emitter = events.Nop{}
	stopPublisher := func() {}
	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		publisher := events.NewPublisher(logger, events.PublisherConfig{
			Brokers: brokers,
			Topic:   config.String("KAFKA_SLOTS_TOPIC", events.TopicSlotsGenerated),
		})
		emitter = publisher
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		stopPublisher = runDetached(publisher)
		logger.Info("slot events enabled", "brokers", brokers)
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:slots"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	slots := handlers.NewSlotsHandler(client, availability.NewGenerator(logger), emitter, logger, loc)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/public/slots", slots.Slots)

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Authorization,X-Request-Id"),
			MaxAge:         config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
		rateLimitMW,
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, service),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	grpcSrv.stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	// In-flight requests may have emitted until Shutdown returned.
	stopPublisher()
}
