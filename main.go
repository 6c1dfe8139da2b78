package main

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ctf-event-service/internal/cache"
	"ctf-event-service/internal/config"
	"ctf-event-service/internal/db"
	"ctf-event-service/internal/event"
	"ctf-event-service/internal/handlers"
	"ctf-event-service/internal/logger"
	"ctf-event-service/internal/repository"
	"ctf-event-service/internal/service"
	"ctf-event-service/internal/snapshot"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("configs")
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Server.Mode)
	defer logger.Log.Sync()

	db.InitMongo(cfg.Mongo.URI)
	defer db.Disconnect()
	database := db.Client.Database(cfg.Mongo.Database)

	questionRepo := repository.NewQuestionRepository(database)
	questionSetRepo := repository.NewQuestionSetRepository(database)
	eventRepo := repository.NewEventRepository(database)
	answerRepo := repository.NewAnswerRepository(database)
	hintRepo := repository.NewHintRepository(database)

	idxCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := answerRepo.EnsureIndexes(idxCtx); err != nil {
		logger.Log.Fatal("failed to create answer indexes", zap.Error(err))
	}
	cancel()

	// Optional infrastructure: the service runs without RabbitMQ or Redis,
	// dropping events and leaderboard caching respectively.
	var publisher *event.Publisher
	if cfg.RabbitMQ.URI != "" {
		publisher, err = event.NewPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Log.Warn("RabbitMQ unavailable, domain events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	var board *cache.Leaderboard
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		board = cache.NewLeaderboard(rdb, 30*time.Second)
	}

	builder := snapshot.NewBuilder(questionSetRepo, questionRepo)

	questionService := service.NewQuestionService(questionRepo, eventRepo, publisher)
	questionSetService := service.NewQuestionSetService(questionSetRepo, eventRepo, builder, publisher)
	eventService := service.NewEventService(eventRepo, answerRepo, hintRepo, builder, board, publisher)
	answerService := service.NewAnswerService(eventRepo, answerRepo, hintRepo, board, publisher)

	questionHandler := handlers.NewQuestionHandler(questionService)
	questionSetHandler := handlers.NewQuestionSetHandler(questionSetService)
	eventHandler := handlers.NewEventHandler(eventService)
	answerHandler := handlers.NewAnswerHandler(answerService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-ID", "X-User-Email", "X-User-Name", "X-User-First-Name", "X-User-Last-Name", "X-User-Org", "X-User-Role"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "ctf-event-service"})
	})

	public := r.Group("/public/ctf")
	{
		public.GET("/questions", questionHandler.ListQuestions)
		public.GET("/questions/:id", questionHandler.GetQuestion)
		public.GET("/events/active", eventHandler.ActiveEvents)
	}

	protected := r.Group("/protected/ctf")
	protected.Use(handlers.IdentityMiddleware())
	{
		admin := protected.Group("")
		admin.Use(handlers.RequireAdmin())
		{
			admin.POST("/questions", questionHandler.CreateQuestion)
			admin.PUT("/questions/:id", questionHandler.UpdateQuestion)
			admin.DELETE("/questions/:id", questionHandler.DeleteQuestion)

			admin.GET("/question-sets", questionSetHandler.ListQuestionSets)
			admin.GET("/question-sets/:id", questionSetHandler.GetQuestionSet)
			admin.POST("/question-sets", questionSetHandler.CreateQuestionSet)
			admin.PUT("/question-sets/:id", questionSetHandler.UpdateQuestionSet)
			admin.DELETE("/question-sets/:id", questionSetHandler.DeleteQuestionSet)

			admin.POST("/events", eventHandler.CreateEvent)
			admin.PUT("/events/:id", eventHandler.UpdateEvent)
			admin.DELETE("/events/:id", eventHandler.DeleteEvent)
			admin.GET("/events/:id/participants", eventHandler.Participants)
			admin.PUT("/events/:id/categories/:categoryName", eventHandler.SetCategoryVisibility)
			admin.PUT("/events/:id/questions/:questionId/answer", eventHandler.OverrideAnswer)
		}

		protected.GET("/events", eventHandler.ListEvents)
		protected.GET("/events/active", eventHandler.ActiveEvents)
		protected.POST("/events/join", eventHandler.JoinEvent)
		protected.GET("/events/:id", eventHandler.GetEvent)
		protected.GET("/events/:id/play", eventHandler.PlayEvent)
		protected.GET("/events/:id/leaderboard", eventHandler.Leaderboard)
		protected.POST("/events/:id/questions/:questionId/answer", answerHandler.SubmitAnswer)
		protected.GET("/events/:id/questions/:questionId/hint", answerHandler.RequestHint)
		protected.GET("/events/:id/answers", answerHandler.ListAnswers)
	}

	logger.Log.Info("ctf-event-service listening", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Log.Fatal("server exited", zap.Error(err))
	}
}
