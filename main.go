package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"practice-service/internal/cache"
	"practice-service/internal/db"
	"practice-service/internal/event"
	"practice-service/internal/handlers"
	"practice-service/internal/logging"
	"practice-service/internal/repository"
	"practice-service/internal/service"
)

func main() {
	log := logging.New("practice-service")

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system env")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	client, err := db.Connect(context.Background(), mongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	database := client.Database("practice_service")

	// Redis snapshot mirror (optional): sessions survive a process restart
	// when configured.
	var snapCache *cache.SessionCache
	if redisURI := os.Getenv("REDIS_URI"); redisURI != "" {
		snapCache, err = cache.New(context.Background(), redisURI)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer snapCache.Close()
	} else {
		log.Info("Redis not configured, sessions will not survive restarts")
	}

	// RabbitMQ event publisher (optional).
	var publisher *event.EventPublisher
	rabbitURL := os.Getenv("RABBITMQ_URI")
	eventExchange := os.Getenv("RABBITMQ_EXCHANGE")
	if rabbitURL != "" && eventExchange != "" {
		publisher, err = event.NewEventPublisher(rabbitURL, eventExchange, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
	} else {
		log.Info("RabbitMQ not configured, practice events will not be published")
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://app.emberprep.co.uk"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	questionRepo := repository.NewQuestionRepository(database)
	attemptRepo := repository.NewAttemptRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	childRepo := repository.NewChildRepository(database)

	practiceService := service.NewPracticeService(questionRepo, attemptRepo, sessionRepo, childRepo, log)
	practiceHandler := handlers.NewPracticeHandler(practiceService)

	runtime := service.NewSessionRuntime(sessionRepo, attemptRepo, questionRepo, snapCache, publisher, log)
	sessionHandler := handlers.NewSessionHandler(runtime)

	planService := service.NewPlanService(attemptRepo, log)
	planHandler := handlers.NewPlanHandler(planService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	practice := r.Group("/api/practice")
	{
		practice.GET("/session-questions", practiceHandler.SessionQuestions)
		practice.POST("/session/from-recommendation", requireUser(), practiceHandler.CreateFromRecommendation)
	}

	sessions := r.Group("/api/practice/session")
	sessions.Use(requireUser())
	{
		sessions.POST("/:id/start", sessionHandler.Start)
		sessions.POST("/:id/answer", sessionHandler.SubmitAnswer)
		sessions.POST("/:id/next", sessionHandler.Next)
		sessions.POST("/:id/previous", sessionHandler.Previous)
		sessions.POST("/:id/pause", sessionHandler.Pause)
		sessions.POST("/:id/resume", sessionHandler.Resume)
		sessions.POST("/:id/complete", sessionHandler.Complete)
		sessions.GET("/:id/status", sessionHandler.Status)
	}

	r.GET("/api/plan/weekly/:childId", planHandler.WeeklyPlan)
	r.GET("/api/progress/heatmap/:childId", planHandler.Heatmap)

	port := os.Getenv("PORT")
	if port == "" {
		port = "6680"
	}
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// requireUser enforces the gateway-injected identity header on mutating
// routes. Full auth lives upstream.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-User-ID") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "MISSING_USER_ID",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
