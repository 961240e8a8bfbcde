// server/internal/api/routes/routes.go
package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shipshape-api-server/config"
	"shipshape-api-server/internal/api/handlers"
	"shipshape-api-server/internal/api/middleware"
	"shipshape-api-server/internal/socket"
)

// Deps gom các thành phần mà router cần.
type Deps struct {
	Cfg           config.Config
	Marketplace   handlers.Marketplace
	Executor      handlers.GoLiveExecutor
	Notifications handlers.NotificationStore
	Invoker       middleware.TokenVerifier
	UserTokens    handlers.UserTokenVerifier
	Hub           *socket.Hub
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(d Deps) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(corsConfig(d.Cfg.Server.AllowedOrigins)))

	// Khởi tạo các handlers
	shipmentHandler := &handlers.ShipmentHandler{Marketplace: d.Marketplace}
	notificationHandler := &handlers.NotificationHandler{Store: d.Notifications}
	goLiveHandler := &handlers.GoLiveHandler{Executor: d.Executor}
	webSocketHandler := &handlers.WebSocketHandler{Hub: d.Hub, Tokens: d.UserTokens}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		shipments := apiV1.Group("/shipments")
		{
			shipments.POST("", shipmentHandler.CreateShipment)
			shipments.GET("/:id", shipmentHandler.GetShipment)
			shipments.PUT("/:id", shipmentHandler.UpdateShipment)
			shipments.POST("/:id/register", shipmentHandler.Register)
			shipments.POST("/:id/bids", shipmentHandler.PlaceBid)
			shipments.GET("/:id/bids", shipmentHandler.ListBids)
			shipments.POST("/:id/award", shipmentHandler.Award)
		}

		users := apiV1.Group("/users")
		{
			users.GET("/:id/notifications", notificationHandler.GetNotifications)
			users.GET("/:id/shipments", shipmentHandler.GetShipmentsByExporter)
		}

		apiV1.POST("/notifications/:id/read", notificationHandler.MarkRead)

		// Chỉ scheduler (danh tính invoker) được gọi endpoint go-live.
		tasks := apiV1.Group("/tasks")
		tasks.Use(middleware.RequireInvoker(d.Invoker, d.Cfg.Scheduler.EffectiveAudience(), d.Cfg.Scheduler.InvokerEmail))
		{
			tasks.POST("/go-live", goLiveHandler.Execute)
		}
	}

	return router
}
