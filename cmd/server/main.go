package main

import (
	"fmt"
	"log"
	"net/http"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/database"
	"roomchat/backend/internal/handler"
	"roomchat/backend/internal/hub"
	"roomchat/backend/internal/presence"
	"roomchat/backend/internal/realtime"
	"roomchat/backend/internal/store"
	"roomchat/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

func init() {
	config.LoadConfig()
}

// @title           Roomchat API
// @version         1.0
// @description     This is the API for the Roomchat service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	// Connect to the database
	database.Connect(config.AppConfig.DatabaseURL)

	// Realtime wiring: channel registry, message log and the optional
	// redis-backed presence tracker.
	channelHub := hub.NewHub()
	messages := store.NewMessageStore(database.DB)

	var tracker realtime.Presence
	if config.AppConfig.RedisURL != "" {
		t, err := presence.NewTracker(config.AppConfig.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer t.Close()
		tracker = t
	} else {
		log.Println("Warning: REDIS_URL not set, room presence tracking disabled")
	}

	ws := realtime.NewServer(channelHub, realtime.VerifierFunc(jwt.VerifyToken), messages, tracker)

	router := gin.Default()

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Realtime endpoint. No auth middleware here: connections authenticate
	// per event with their session token.
	router.GET("/ws", ws.HandleWS)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", handler.RegisterUser)
			authRoutes.POST("/login", handler.LoginUser)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", handler.GetMe)
		}

		// Room routes (protected)
		roomRoutes := apiV1.Group("/rooms")
		roomRoutes.Use(auth.AuthMiddleware())
		{
			roomRoutes.POST("", handler.CreateRoom)
			roomRoutes.GET("/mine", handler.MyRooms)
			roomRoutes.POST("/private", handler.PrivateRoom)
			roomRoutes.GET("/:id", handler.GetRoomByID)
			roomRoutes.GET("/:id/messages", handler.GetRoomMessages)
			roomRoutes.POST("/:id/join", handler.JoinRoom)
			roomRoutes.POST("/:id/leave", handler.LeaveRoom)
			roomRoutes.PATCH("/:id/role", handler.UpdateRole)
			roomRoutes.DELETE("/:id/participants/:userID", handler.RemoveParticipant)
		}
	}

	addr := ":" + config.AppConfig.Port
	fmt.Println("Server is running on " + addr)
	log.Fatal(router.Run(addr))
}
