package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/examgrader/config"
	"github.com/lshigami/examgrader/database"
	userctrl "github.com/lshigami/examgrader/internal/controller/user"
	"github.com/lshigami/examgrader/internal/event"
	"github.com/lshigami/examgrader/internal/executor"
	"github.com/lshigami/examgrader/internal/grading"
	"github.com/lshigami/examgrader/internal/logger"
	"github.com/lshigami/examgrader/internal/model"
	"github.com/lshigami/examgrader/internal/repository"
	"github.com/lshigami/examgrader/internal/service"
	"github.com/lshigami/examgrader/internal/session"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Exam Grader API
// @version 1.0
// @description Timed exam sessions with autosave, automatic submission and code grading against an external executor.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewGinEngine,
		),

		fx.Provide(
			repository.NewExamRepository,
			repository.NewAttemptRepository,
			repository.NewAssignmentRepository,
		),

		// Grading pipeline
		fx.Provide(
			fx.Annotate(executor.NewClient, fx.As(new(executor.Runner))),
			fx.Annotate(grading.NewGrader, fx.As(new(grading.CodeGrader))),
			fx.Annotate(grading.NewScorer, fx.As(new(session.Scorer))),
			event.NewPublisher,
		),

		fx.Provide(
			service.NewExamService,
			service.NewExamSessionService,
		),

		fx.Provide(
			userctrl.NewExamSessionController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop application cleanly")
	}
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", userctrl.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
// On stop the server drains first, then live sessions save and stop their
// timers, then the event publisher closes.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	sessionCtrl *userctrl.ExamSessionController,
	sessions service.ExamSessionService,
	publisher event.Publisher,
) {
	sessionCtrl.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Exam grader server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			err := server.Shutdown(ctx)
			sessions.Shutdown(ctx)
			if cerr := publisher.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("Failed to close event publisher")
			}
			return err
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Exam{},
		&model.Question{},
		&model.TestCase{},
		&model.ExamAttempt{},
		&model.ExamAssignment{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
