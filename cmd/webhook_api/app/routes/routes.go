package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/thutasann/nano-pulse/cmd/webhook_api/app/internal/handler"
	"github.com/thutasann/nano-pulse/middlewares"
	"github.com/thutasann/nano-pulse/pkg/dispatch"
	"github.com/thutasann/nano-pulse/pkg/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Webhooks(router *gin.RouterGroup, svc *dispatch.Router, limiter *middlewares.RateLimiter, log *zap.Logger) {
	webhookHandler := handler.NewWebhookHandler(svc, log)

	router.POST("/events", limiter.Middleware(), webhookHandler.TriggerEvent())
	router.POST("/deliveries/:deliveryId/retry", webhookHandler.RetryDelivery())
	router.GET("/subscriptions/:subscriptionId/stats", webhookHandler.GetStats())
	router.GET("/subscriptions/:subscriptionId/deliveries", webhookHandler.RecentDeliveries())
}

func Subscriptions(router *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	subscriptionHandler := handler.NewSubscriptionHandler(repositories.NewSubscriptionRepository(db), log)

	router.POST("/", subscriptionHandler.Create())
	router.GET("/", subscriptionHandler.ListByClient())
	router.GET("/:subscriptionId", subscriptionHandler.Get())
	router.PATCH("/:subscriptionId", subscriptionHandler.Update())
	router.DELETE("/:subscriptionId", subscriptionHandler.Deactivate())
	router.POST("/:subscriptionId/events", subscriptionHandler.AddEvents())
	router.DELETE("/:subscriptionId/events", subscriptionHandler.RemoveEvents())
}
