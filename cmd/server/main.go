package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/api"
	"codearena/internal/app/service"
	"codearena/internal/app/session"
	"codearena/internal/common/security"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"
	"codearena/internal/platform/database"
	"codearena/internal/platform/executor"
	"codearena/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	log.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	log.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	log.Println("Database connected.")

	// 4. Initialize Redis (live-session store)
	queue.ConnectRedis()
	defer queue.CloseRedis()
	log.Println("Redis connected.")

	loc := config.AppConfig.Location()

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	leaderboardRepo := repository.NewPgLeaderboardRepository(database.DB)

	// 6. Initialize Services
	liveStore := session.NewRedisStore(queue.RDB)
	authService := service.NewAuthService(userRepo)
	contestService := service.NewContestService(contestRepo, submissionRepo, liveStore, loc)
	leaderboardService := service.NewLeaderboardService(contestRepo, leaderboardRepo, loc)

	// 7. Initialize the Session Manager
	execClient := executor.NewHTTPClient(config.AppConfig.ExecutorBaseURL, config.AppConfig.ExecutorTimeout)
	sessionManager := session.NewManager(
		contestService,
		submissionRepo,
		execClient,
		liveStore,
		loc,
		config.AppConfig.PhaseTickInterval,
		config.AppConfig.SessionExitGrace,
	)
	defer sessionManager.Shutdown()

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, contestService, leaderboardService, sessionManager)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
