package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/PvtMilo/gen-ai/internal/camera"
	"github.com/PvtMilo/gen-ai/internal/config"
	"github.com/PvtMilo/gen-ai/internal/database"
	"github.com/PvtMilo/gen-ai/internal/drive"
	"github.com/PvtMilo/gen-ai/internal/handlers"
	"github.com/PvtMilo/gen-ai/internal/middleware"
	"github.com/PvtMilo/gen-ai/internal/pipeline"
	"github.com/PvtMilo/gen-ai/internal/report"
	"github.com/PvtMilo/gen-ai/internal/seedream"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENVIRONMENT") != "production" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create static directories")
	}

	migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize migrator")
	}
	if err := migrator.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Migration failed")
	}
	migrator.Close()

	// HTTP handlers and pipeline workers each get their own client so
	// a slow generation cannot starve request queries.
	dbClient, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbClient.Close()

	pipelineDB, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect pipeline database client")
	}
	defer pipelineDB.Close()

	if seeded, err := dbClient.SeedThemesIfEmpty(); err != nil {
		logger.Warn().Err(err).Msg("Theme seeding failed")
	} else if seeded > 0 {
		logger.Info().Int("count", seeded).Msg("Seeded themes")
	}

	loc := cfg.Location()

	seedreamClient := seedream.NewClient(cfg.ArkBaseURL, cfg.ArkAPIKey, cfg.SeedreamModel)

	driveClient := drive.NewClient(cfg.DriveTokenFile, cfg.DriveClientSecretsFile, cfg.DriveFolderID)
	driveService := drive.NewService(
		driveClient, pipelineDB,
		cfg.ResultsDir(), cfg.CompressedDir(),
		cfg.DriveManifestFile, cfg.BaseURL, cfg.DriveUploadCompressed,
		logger.With().Str("component", "drive").Logger(),
	)

	processor := pipeline.NewProcessor(pipelineDB, seedreamClient, driveService, pipeline.ProcessorOptions{
		UploadsDir:      cfg.UploadsDir(),
		OverlaysDir:     cfg.OverlaysDir(),
		ResultsDir:      cfg.ResultsDir(),
		CompressedDir:   cfg.CompressedDir(),
		ImageSize:       cfg.SeedreamSize,
		Watermark:       cfg.SeedreamWatermark,
		JobTimeout:      cfg.JobTimeout,
		CompressQuality: cfg.CompressQuality,
		CompressDPI:     cfg.CompressDPI,
	}, logger.With().Str("component", "pipeline").Logger())

	queue := pipeline.NewQueue(processor, cfg.QueueSize, logger.With().Str("component", "queue").Logger())
	queue.Start(cfg.Workers)
	defer queue.Stop()
	if err := queue.Recover(pipelineDB); err != nil {
		logger.Warn().Err(err).Msg("Failed to recover unfinished jobs")
	}

	cameraClient := camera.NewClient(cfg.DigicamBaseURL, cfg.DigicamPreviewPath, cfg.DigicamCaptureCmd)
	cameraService := camera.NewService(cameraClient, cfg.DigicamOriginalDir, cfg.CapturedDir())

	estimator := report.NewEstimator(dbClient, loc)
	cleaner := report.NewCleaner(dbClient, cfg.ResultsDir(), cfg.CleanupPassword, loc,
		logger.With().Str("component", "maintenance").Logger())

	sessionsHandler := handlers.NewSessionsHandler(dbClient, cfg.UploadsDir())
	themesHandler := handlers.NewThemesHandler(dbClient, cfg.ThumbsDir(), logger.With().Str("component", "themes").Logger())
	jobsHandler := handlers.NewJobsHandler(dbClient, queue, cfg.OverlaysDir())
	galleryHandler := handlers.NewGalleryHandler(dbClient)
	driveHandler := handlers.NewDriveHandler(driveClient, driveService, cfg.ResultsDir())
	estimatorHandler := handlers.NewEstimatorHandler(estimator)
	maintenanceHandler := handlers.NewMaintenanceHandler(cleaner)
	settingsHandler := handlers.NewSettingsHandler(cfg.OverlaysDir())
	cameraHandler := handlers.NewCameraHandler(cameraClient, cameraService, cfg.BaseURL)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", handlers.HealthHandler)
	router.Static("/static", cfg.StaticDir)

	api := router.Group("/api/v1")

	api.POST("/sessions/start", sessionsHandler.StartSession)
	api.GET("/sessions/:session_id", sessionsHandler.GetSession)
	api.PATCH("/sessions/:session_id/theme", sessionsHandler.SetTheme)
	api.POST("/sessions/:session_id/upload", sessionsHandler.UploadPhoto)

	api.GET("/themes", themesHandler.ListPublic)

	api.POST("/jobs", jobsHandler.CreateJob)
	api.GET("/jobs/:job_id", jobsHandler.GetJob)

	api.GET("/gallery", galleryHandler.ListGallery)

	api.GET("/drive/qr", driveHandler.QR)
	api.GET("/drive/status", driveHandler.Status)

	api.GET("/camera/liveview", cameraHandler.Liveview)
	api.GET("/camera/preview", cameraHandler.Preview)
	api.POST("/camera/capture", cameraHandler.Capture)

	// operator endpoints; auth is a no-op until ADMIN_JWT_SECRET is set
	admin := api.Group("")
	admin.Use(middleware.AdminAuth(cfg.AdminJWTSecret))

	admin.GET("/themes/internal", themesHandler.ListInternal)
	admin.GET("/themes/:theme_id", themesHandler.GetTheme)
	admin.POST("/themes", themesHandler.CreateTheme)
	admin.PUT("/themes/:theme_id", themesHandler.UpdateTheme)
	admin.DELETE("/themes/:theme_id", themesHandler.DeleteTheme)

	admin.POST("/drive/sync", driveHandler.Sync)
	admin.POST("/drive/upload", driveHandler.UploadFile)
	admin.POST("/drive/upload_for_job/:job_id", driveHandler.UploadForJob)

	admin.GET("/token-estimator/report", estimatorHandler.Report)
	admin.GET("/token-estimator/export.csv", estimatorHandler.ExportCSV)

	admin.POST("/event-maintenance/preview-delete", maintenanceHandler.PreviewDelete)
	admin.POST("/event-maintenance/execute-delete", maintenanceHandler.ExecuteDelete)

	admin.POST("/settings/overlay", settingsHandler.UploadOverlay)

	logger.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}
