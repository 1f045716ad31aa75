package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/thutasann/nano-pulse/logger"
	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/middlewares"
	"github.com/thutasann/nano-pulse/pkg/config"
	"github.com/thutasann/nano-pulse/pkg/database"
	"github.com/thutasann/nano-pulse/pkg/dispatch"
	"github.com/thutasann/nano-pulse/pkg/kafka"
	"github.com/thutasann/nano-pulse/pkg/queue"
	"github.com/thutasann/nano-pulse/pkg/repositories"
	"github.com/thutasann/nano-pulse/pkg/utils"
	"github.com/thutasann/nano-pulse/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	logr, err := logger.InitLogger()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	defer logr.Sync()

	logr.Info("Starting delivery worker")

	cfg, err := config.Load("./config.yaml")
	if err != nil {
		logr.Fatal("failed to load config", zap.Error(err))
	}

	db, err := database.InitDB(cfg.Postgres.DSN)
	if err != nil {
		logr.Fatal("failed to initialize database", zap.Error(err))
	}
	rdb := database.InitRedis(cfg.Redis.Addr)

	metrics.InitWorkerMetrics()
	metrics.InitKafkaMetrics()

	otelEndpoint := utils.GetEnvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	shutdownTracer := tracing.InitTracer("delivery-worker", otelEndpoint, logr)
	defer shutdownTracer()

	deliveryRepo := repositories.NewDeliveryRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db)
	fastQueue := queue.NewRedisFastQueue(rdb, cfg.Webhook.FastQueueKey, cfg.Webhook.PubSubChannel)

	producer := kafka.NewProducer(cfg.Kafka.Brokers)

	consumer := dispatch.NewConsumer(deliveryRepo, fastQueue, otel.Tracer("delivery-worker"), logr)
	consumer.SetIdleBackoff(cfg.Webhook.PollIdleBackoff)
	consumer.SetProcessTimeout(cfg.Webhook.ProcessTimeout)

	scheduler := dispatch.NewRetryScheduler(
		deliveryRepo,
		subscriptionRepo,
		producer,
		cfg.Webhook.RetryTopic,
		cfg.Webhook.RetryInterval,
		cfg.Webhook.RetryBatchSize,
		logr,
	)

	readers := map[string]dispatch.MessageReader{
		cfg.Webhook.MediumTopic: kafka.NewConsumer(cfg.Webhook.MediumTopic, cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup),
		cfg.Webhook.LowTopic:    kafka.NewConsumer(cfg.Webhook.LowTopic, cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup),
		cfg.Webhook.RetryTopic:  kafka.NewConsumer(cfg.Webhook.RetryTopic, cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		consumer.Run(ctx, readers)
	}()
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{Addr: ":3001", Handler: middlewares.MetricsMiddleware(mux)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("Shutdown signal received", zap.String("signal", sig.String()))

	cancel()
	wg.Wait()

	if err := server.Shutdown(context.Background()); err != nil {
		logr.Error("error shutting down metrics server", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		logr.Error("error closing Kafka producer", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logr.Error("error closing Redis client", zap.Error(err))
	}
	logr.Info("delivery worker stopped")
}
