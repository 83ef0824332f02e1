package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"alcyxob/run-coach/internal/api"
	"alcyxob/run-coach/internal/cache"
	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/config"
	"alcyxob/run-coach/internal/generator"
	"alcyxob/run-coach/internal/logging"
	"alcyxob/run-coach/internal/repository/mongo"
	"alcyxob/run-coach/internal/service"
	"alcyxob/run-coach/internal/storage"
)

// @title Run Coach API
// @version 1.0
// @description Race training plans: generation, scheduling and workout scoring.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	logger := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "address", cfg.Server.Address, "database", cfg.Database.Name)

	offsets, err := cfg.Coach.Offsets()
	if err != nil {
		return err
	}
	templates, err := coach.DefaultTemplates()
	if err != nil {
		return fmt.Errorf("load generation templates: %w", err)
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return fmt.Errorf("could not connect to MongoDB: %w", err)
	}
	defer func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// The unique indexes enforce registry and link rules, so startup waits for them.
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), time.Minute)
	err = mongo.EnsureIndexes(indexCtx, appDB)
	cancelIndexes()
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("database ready")

	// --- Preview cache ---
	previews, err := cache.Open(cfg.Cache.Dir, cfg.Cache.PreviewTTL, logger)
	if err != nil {
		return err
	}
	defer previews.Close()
	gc, err := previews.ScheduleGC(cfg.Cache.GCSchedule)
	if err != nil {
		return err
	}
	gc.Start()
	defer gc.Stop()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(context.Background(), cfg.S3, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 storage: %w", err)
	}

	gen := generator.NewOpenAI(cfg.OpenAI, logger)

	// --- Initialize Repositories ---
	athleteRepo := mongo.NewMongoAthleteRepository(appDB)
	raceRepo := mongo.NewMongoRaceRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)
	scheduleRepo := mongo.NewMongoScheduleRepository(appDB)
	activityRepo := mongo.NewMongoActivityRepository(appDB)
	executedRepo := mongo.NewMongoExecutedDayRepository(appDB)

	// --- Initialize Services ---
	raceService := service.NewRaceService(raceRepo, logger)
	planService := service.NewPlanService(planRepo, scheduleRepo, athleteRepo, raceService, gen, previews,
		service.PlanOptions{
			Templates:             *templates,
			PaceOffsets:           offsets,
			AllowPartialFirstWeek: cfg.Coach.AllowPartialFirstWeek,
		}, logger)
	activityService := service.NewActivityService(activityRepo, fileStorage, logger)
	scoreService := service.NewScoreService(planRepo, scheduleRepo, activityRepo, executedRepo, athleteRepo, logger)

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, cfg.JWT.Secret, api.Services{
		Races:      raceService,
		Plans:      planService,
		Activities: activityService,
		Scores:     scoreService,
	}, logger)

	// --- Start HTTP Server ---
	// Generation requests can take most of the generator timeout.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.OpenAI.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
