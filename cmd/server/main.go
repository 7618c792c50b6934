package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tachyonedu/practice-engine/internal/common/database"
	commonHandlers "github.com/tachyonedu/practice-engine/internal/common/handlers"
	"github.com/tachyonedu/practice-engine/internal/common/health"
	"github.com/tachyonedu/practice-engine/internal/common/middleware"
	"github.com/tachyonedu/practice-engine/internal/practice/engine"
	"github.com/tachyonedu/practice-engine/pkg/config"
	"github.com/tachyonedu/practice-engine/pkg/logger"

	gamificationHandlers "github.com/tachyonedu/practice-engine/internal/gamification/handlers"
	gamificationServices "github.com/tachyonedu/practice-engine/internal/gamification/services"
	lectureRepo "github.com/tachyonedu/practice-engine/internal/lecture/repository"
	practiceHandlers "github.com/tachyonedu/practice-engine/internal/practice/handlers"
	practiceRepo "github.com/tachyonedu/practice-engine/internal/practice/repository"
	practiceServices "github.com/tachyonedu/practice-engine/internal/practice/services"
	recommendationHandlers "github.com/tachyonedu/practice-engine/internal/recommendation/handlers"
	recommendationRepo "github.com/tachyonedu/practice-engine/internal/recommendation/repository"
	recommendationServices "github.com/tachyonedu/practice-engine/internal/recommendation/services"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	engineCfg := engineConfig(cfg.Engine)

	// Repositories
	questions := practiceRepo.NewQuestionRepository(db)
	attempts := practiceRepo.NewAttemptRepository(db)
	sessions := practiceRepo.NewSessionRepository(db)
	performance := practiceRepo.NewPerformanceRepository(db)
	lectures := lectureRepo.NewLectureRepository(db)
	recommendations := recommendationRepo.NewRecommendationRepository(db)

	// Core engine and services
	adaptiveEngine := engine.New(practiceRepo.NewEngineStore(db), engineCfg)
	gamificationSvc := gamificationServices.NewService(db)
	sessionSvc := practiceServices.NewSessionService(db, sessions, attempts, engineCfg)
	attemptSvc := practiceServices.NewAttemptService(
		db, adaptiveEngine, sessions, attempts, questions, performance, gamificationSvc, recommendations, engineCfg)

	// No embedding backend is configured; similarity degrades to
	// topic-based matching inside the service.
	recommendationSvc := recommendationServices.NewService(
		recommendations, lectures, attempts, engineCfg, nil)

	// Handlers
	healthHandler := commonHandlers.NewHealthHandler(health.NewChecker(db, version))
	practiceHandler := practiceHandlers.NewPracticeHandler(sessionSvc, attemptSvc)
	recommendationHandler := recommendationHandlers.NewRecommendationHandler(recommendationSvc)
	gamificationHandler := gamificationHandlers.NewGamificationHandler(gamificationSvc)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", healthHandler.Health)
	router.GET("/health/readiness", healthHandler.Readiness)
	router.GET("/health/liveness", healthHandler.Liveness)

	v1 := router.Group("/api/v1")
	{
		practice := v1.Group("/practice", middleware.StudentRequired())
		{
			practice.POST("/sessions", practiceHandler.StartSession)
			practice.PATCH("/sessions/:id/end", practiceHandler.EndSession)
			practice.GET("/next-question", practiceHandler.NextQuestion)
			practice.POST("/attempts", practiceHandler.SubmitAttempt)
			practice.GET("/weak-topics", practiceHandler.WeakTopics)
			practice.GET("/performance", practiceHandler.Performance)
		}

		v1.GET("/gamification/profile", middleware.StudentRequired(), gamificationHandler.Profile)

		recs := v1.Group("/recommendations", middleware.StudentRequired())
		{
			recs.GET("", recommendationHandler.List)
			recs.GET("/similar/:question_id", recommendationHandler.Similar)
			recs.POST("/lectures/:id/generate", recommendationHandler.GenerateForLecture)
			recs.POST("/:id/complete", recommendationHandler.Complete)
		}
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info("starting practice engine",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Env),
		zap.String("db", cfg.Database.Type))

	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func engineConfig(ec config.EngineConfig) engine.Config {
	return engine.Config{
		DifficultyWindow:       ec.DifficultyWindow,
		DefaultDifficulty:      ec.DefaultDifficulty,
		RaiseAccuracy:          ec.RaiseAccuracy,
		LowerAccuracy:          ec.LowerAccuracy,
		WeakTopicWindow:        time.Duration(ec.WeakTopicWindowDays) * 24 * time.Hour,
		MinTopicAttempts:       ec.MinTopicAttempts,
		RevisionMinAttempts:    ec.RevisionMinAttempts,
		RevisionAccuracyCutoff: ec.RevisionAccuracyCutoff,
		RecencyExclusion:       ec.RecencyExclusion,
	}
}
