package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/thutasann/nano-pulse/cmd/webhook_api/app/routes"
	"github.com/thutasann/nano-pulse/logger"
	"github.com/thutasann/nano-pulse/metrics"
	"github.com/thutasann/nano-pulse/middlewares"
	"github.com/thutasann/nano-pulse/pkg/config"
	"github.com/thutasann/nano-pulse/pkg/database"
	"github.com/thutasann/nano-pulse/pkg/dispatch"
	"github.com/thutasann/nano-pulse/pkg/kafka"
	"github.com/thutasann/nano-pulse/pkg/models"
	"github.com/thutasann/nano-pulse/pkg/queue"
	"github.com/thutasann/nano-pulse/pkg/repositories"
	"github.com/thutasann/nano-pulse/pkg/stats"
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

	cfg, err := config.Load("./config.yaml")
	if err != nil {
		logr.Fatal("failed to load config", zap.Error(err))
	}

	db, err := database.InitDB(cfg.Postgres.DSN)
	if err != nil {
		logr.Fatal("failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateDB(db, &models.WebhookSubscription{}, &models.WebhookDelivery{}); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	rdb := database.InitRedis(cfg.Redis.Addr)

	metrics.InitAPIMetrics()
	metrics.InitKafkaMetrics()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	logr.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	fastQueue := queue.NewRedisFastQueue(rdb, cfg.Webhook.FastQueueKey, cfg.Webhook.PubSubChannel)
	aggregator := stats.NewAggregator(rdb)

	svc := dispatch.NewRouter(
		repositories.NewSubscriptionRepository(db),
		repositories.NewDeliveryRepository(db),
		producer,
		fastQueue,
		aggregator,
		dispatch.Topics{
			Medium: cfg.Webhook.MediumTopic,
			Low:    cfg.Webhook.LowTopic,
			Retry:  cfg.Webhook.RetryTopic,
		},
		cfg.Webhook.FanoutWorkers,
		logr,
	)

	limiter := middlewares.NewRateLimiter(rate.Limit(cfg.Webhook.RateLimitRPS), cfg.Webhook.RateLimitBurst)

	router := gin.Default()
	router.Use(middlewares.GinMetricsMiddleware())

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api")
	routes.Webhooks(v1.Group("/webhooks"), svc, limiter, logr)
	routes.Subscriptions(v1.Group("/subscriptions"), db, logr)

	go handleShutdown(producer, rdb, logr)
	if err := router.Run(":3000"); err != nil {
		logr.Fatal("failed to start server", zap.Error(err))
	}
}

func handleShutdown(producer *kafka.Producer, rdb *redis.Client, log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Shutdown signal received", zap.String("signal", sig.String()))

	if err := producer.Close(); err != nil {
		log.Error("error closing Kafka producer", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		log.Error("error closing Redis client", zap.Error(err))
	}

	os.Exit(0)
}
