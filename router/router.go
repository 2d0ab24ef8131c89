package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/config"
	"github.com/yeremiapane/agrimarket/controllers"
	"github.com/yeremiapane/agrimarket/hub"
	"github.com/yeremiapane/agrimarket/middlewares"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/services"
	"gorm.io/gorm"
)

// Bid placement gets its own per-merchant budget on top of the global one.
const (
	bidPlacementPerSecond = 1
	bidPlacementBurst     = 5
)

func SetupRouter(db *gorm.DB, h *hub.Hub, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// Middleware first; gin only applies Use to routes registered after it.
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSAllowedOrigin))
	r.Use(middlewares.NewRateLimiter(float64(cfg.RateLimitPerSec), cfg.RateLimitBurst).RateLimit())

	// Services
	bidSvc := services.NewBidService(db, h)
	paymentSvc := services.NewPaymentService(db)
	notificationSvc := services.NewNotificationService(db)
	chatSvc := services.NewChatService(db, h, h)
	vehicleSvc := services.NewVehicleService(db, h)
	productSvc := services.NewProductService(db, h, bidSvc)

	// Controllers
	userCtrl := controllers.NewUserController(db)
	productCtrl := controllers.NewProductController(productSvc)
	bidCtrl := controllers.NewBidController(bidSvc, paymentSvc)
	notificationCtrl := controllers.NewNotificationController(notificationSvc)
	chatCtrl := controllers.NewChatController(chatSvc)
	vehicleCtrl := controllers.NewVehicleController(vehicleSvc)
	wsCtrl := controllers.NewWSController(h, cfg.CORSAllowedOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "connected_users": h.ConnectedUsers()})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), wsCtrl.Connect)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	farmer := middlewares.RequireRoles(models.RoleFarmer)
	merchant := middlewares.RequireRoles(models.RoleMerchant)
	merchantOrAdmin := middlewares.RequireRoles(models.RoleMerchant, models.RoleAdmin)
	farmerOrMerchant := middlewares.RequireRoles(models.RoleFarmer, models.RoleMerchant)
	transporterOrAdmin := middlewares.RequireRoles(models.RoleTransporter, models.RoleAdmin)
	admin := middlewares.RequireRoles(models.RoleAdmin)

	api.GET("/profile", userCtrl.GetProfile)
	api.GET("/users", admin, userCtrl.GetAllUsers)

	// PRODUCTS
	api.GET("/products", productCtrl.GetAllProducts)
	api.GET("/products/:id", productCtrl.GetProductByID)
	api.POST("/products", farmer, productCtrl.CreateProduct)
	api.PUT("/products/:id", farmer, productCtrl.UpdateProduct)
	api.DELETE("/products/:id", farmer, productCtrl.DeleteProduct)

	// BIDS
	bidLimiter := middlewares.NewRateLimiter(bidPlacementPerSecond, bidPlacementBurst)
	api.GET("/bids", bidCtrl.GetBids)
	api.GET("/bids/:id", bidCtrl.GetBidByID)
	api.POST("/bids", merchant, bidLimiter.PerUser("Too many bids, please wait a moment"),
		middlewares.BidActionLogger("place"), bidCtrl.PlaceBid)

	bids := api.Group("/bids/:id")
	{
		bids.POST("/accept", farmer, middlewares.BidActionLogger("accept"), bidCtrl.AcceptBid)
		bids.POST("/reject", farmer, middlewares.BidActionLogger("reject"), bidCtrl.RejectBid)
		bids.POST("/confirm", merchant, middlewares.BidActionLogger("confirm"), bidCtrl.ConfirmBid)
		bids.POST("/payment", merchantOrAdmin, middlewares.BidActionLogger("payment"), bidCtrl.RecordPayment)
		bids.GET("/payment", bidCtrl.GetPayment)
		bids.POST("/deliver", transporterOrAdmin, middlewares.BidActionLogger("deliver"), bidCtrl.MarkDelivered)
		bids.POST("/cancel", farmerOrMerchant, middlewares.BidActionLogger("cancel"), bidCtrl.CancelBid)
	}

	// NOTIFICATIONS
	api.GET("/notifications", notificationCtrl.GetNotifications)
	api.GET("/notifications/unread-count", notificationCtrl.GetUnreadCount)
	api.PATCH("/notifications/read-all", notificationCtrl.MarkAllAsRead)
	api.PATCH("/notifications/:id/read", notificationCtrl.MarkAsRead)
	api.GET("/notifications/:id/open", notificationCtrl.OpenNotification)
	api.POST("/notifications/resolve", notificationCtrl.ResolveRoute)

	// CHATS
	api.POST("/chats", chatCtrl.SendMessage)
	api.GET("/chats", chatCtrl.GetRecentChats)
	api.GET("/chats/presence", chatCtrl.GetPresence)
	api.GET("/chats/:user_id", chatCtrl.GetConversation)

	// VEHICLES
	api.GET("/vehicles", vehicleCtrl.GetVehicles)
	api.POST("/vehicles", middlewares.RequireRoles(models.RoleTransporter), vehicleCtrl.RegisterVehicle)
	api.GET("/vehicle-bookings", vehicleCtrl.GetBookings)
	api.POST("/vehicle-bookings", farmerOrMerchant, vehicleCtrl.BookVehicle)
	api.PATCH("/vehicle-bookings/:id/status", vehicleCtrl.UpdateBookingStatus)

	return r
}
