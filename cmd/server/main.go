package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/api/handlers"
	"github.com/maheshrc27/autopost/internal/api/middleware"
	job "github.com/maheshrc27/autopost/internal/jobs"
	"github.com/maheshrc27/autopost/internal/queue"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	dbx := sqlx.NewDb(db, "postgres")

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	queueItemRepo := repository.NewQueueItemRepository(db)
	driveFileRepo := repository.NewDriveFileRepository(db)
	processorStateRepo := repository.NewProcessorStateRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(dbx)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	assetService := service.NewAssetService(*cfg, driveFileRepo, r2Service)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo)
	instagramService := service.NewInstagramService(*cfg, socialAccountRepo)
	tiktokService := service.NewTiktokService(*cfg, socialAccountRepo)
	youtubeService := service.NewYoutubeService(*cfg, socialAccountRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	publisher := service.NewPlatformPublisher(youtubeService, tiktokService, instagramService)
	selectionService := service.NewSelectionService(driveFileRepo)
	analyticsService := service.NewAnalyticsService(postingHistoryRepo)
	queueService := service.NewQueueService(*cfg, queueItemRepo, socialAccountRepo)
	schedulerService := service.NewSchedulerService(*cfg, scheduleRepo, socialAccountRepo, queueService, analyticsService)
	processorService := service.NewProcessorService(*cfg, queueItemRepo, processorStateRepo,
		driveFileRepo, socialAccountRepo, postingHistoryRepo, selectionService, publisher)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platform := handlers.NewPlatformHandler(platformService, instagramService, tiktokService, youtubeService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	schedule := handlers.NewScheduleHandler(schedulerService)
	api.Post("/schedules", schedule.CreateSchedule)
	api.Get("/schedules", schedule.ListSchedules)
	api.Put("/schedules/:id", schedule.UpdateSchedule)
	api.Post("/schedules/:id/toggle", schedule.ToggleSchedule)
	api.Delete("/schedules/:id", schedule.DeleteSchedule)
	api.Get("/schedules/:id/preview", schedule.PreviewSchedule)
	api.Get("/schedules/suggest", schedule.SuggestSlots)

	queueH := handlers.NewQueueHandler(queueService, client)
	api.Post("/queue", queueH.AddToQueue)
	api.Get("/queue", queueH.ListQueueItems)
	api.Post("/queue/bulk_status", queueH.BulkUpdateStatus)
	api.Post("/queue/:id/retry", queueH.RetryFailedItem)
	api.Post("/queue/:id/cancel", queueH.CancelItem)
	api.Get("/queue/status", queueH.GetQueueStatus)

	processor := handlers.NewProcessorHandler(processorService, client)
	api.Post("/processor/run", processor.TriggerRun)
	api.Post("/processor/items/:id", processor.ProcessItem)
	api.Get("/processor/status", processor.GetStatus)

	analytics := handlers.NewAnalyticsHandler(analyticsService)
	api.Get("/analytics/patterns", analytics.GetPostingPatterns)
	api.Get("/analytics/optimal_times", analytics.GetOptimalTimes)
	api.Get("/analytics/performance", analytics.GetContentPerformance)

	assets := handlers.NewAssetsHandler(assetService)
	api.Post("/assets/upload", assets.UploadFiles)
	api.Post("/assets/:id/blacklist", assets.BlacklistFile)
	api.Delete("/assets/:id", assets.RemoveFile)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, youtubeService, tiktokService, instagramService)
	expansionJob := job.NewExpansionJob(schedulerService, client)

	//queue
	queueW := queue.NewQueue(processorService, schedulerService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 00h01m00s", expansionJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeProcessDue, queueW.HandleProcessDueTask)
		mux.HandleFunc(queue.TaskTypeProcessItem, queueW.HandleProcessItemTask)
		mux.HandleFunc(queue.TaskTypeExpandDue, queueW.HandleExpandDueTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
