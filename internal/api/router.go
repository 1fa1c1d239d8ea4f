package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/api/handlers"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/api/middleware"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/config"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, notifier services.Notifier, enqueueImage handlers.ImageEnqueuer) *gin.Engine {
	userService := services.NewUserService(db)
	transactionService := services.NewTransactionService(db)
	listingService := services.NewListingService(db, userService, transactionService, notifier, cfg.MaxListingImages)
	queryService := services.NewQueryService(db)

	var store storage.IStorage
	if cfg.AwsS3Bucket != "" {
		var err error
		store, err = storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
		}
	}

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(userService, cfg)
	listingHandler := handlers.NewListingHandler(listingService, queryService)
	userHandler := handlers.NewUserHandler(userService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	uploadHandler := handlers.NewUploadHandler(cfg, store, enqueueImage)

	api := r.Group("/api")
	{
		api.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
		}

		// The browse feed, listing detail and lifecycle transitions are
		// open: buyers act without accounts, identified by profile.
		listings := api.Group("/listings")
		{
			listings.GET("", listingHandler.ListAvailable)
			listings.GET("/stats", listingHandler.GetStats)
			listings.GET("/:id", listingHandler.GetListing)
			listings.POST("", listingHandler.CreateListing)
			listings.PUT("/:id/interested", listingHandler.ShowInterest)
			listings.PUT("/:id/request", listingHandler.RequestToBuy)

			// Seller-side transitions need the seller's token.
			sellerOnly := listings.Group("")
			sellerOnly.Use(middleware.AuthMiddleware(cfg.JwtSecret))
			{
				sellerOnly.GET("/pending", listingHandler.ListPending)
				sellerOnly.PUT("/:id/confirm", listingHandler.ConfirmSale)
				sellerOnly.PUT("/:id/reject", listingHandler.RejectSale)
				sellerOnly.DELETE("/:id", listingHandler.DeleteListing)
			}
		}

		if store != nil {
			api.POST("/upload", uploadHandler.UploadImages)
		}

		users := api.Group("/users")
		{
			users.POST("/register", userHandler.RegisterUser)
			users.GET("/contact/:contact", userHandler.GetUserByContact)
			users.GET("/:id/history", userHandler.GetUserHistory)

			adminOnly := users.Group("")
			adminOnly.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
			{
				adminOnly.GET("", userHandler.ListUsers)
			}
		}

		transactions := api.Group("/transactions")
		transactions.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			transactions.GET("/history", transactionHandler.GetHistory)

			adminTxn := transactions.Group("")
			adminTxn.Use(middleware.AdminMiddleware())
			{
				adminTxn.GET("/user/:id", transactionHandler.GetUserHistory)
			}
		}
	}

	return r
}

// SetupServiceRouter configures the internal service engine used by
// integration tests and deploy tooling: shutdown plus mock email retrieval
// from Redis.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}

		case "getTestEmail":
			var args []string // ["event", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [event, email]"})
				return
			}
			redisKey := fmt.Sprintf("mockemail:%s:%s", args[1], args[0])

			var emailJSON string
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				var getErr error
				emailJSON, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJSON), &emailData); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
