package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DocLayout/internal/config"
	"DocLayout/pkg/detector"
	"DocLayout/pkg/log"
	"DocLayout/pkg/redis"

	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	logger := log.NewLogger()
	if envErr != nil {
		logger.Warnf("No .env file loaded: %v", envErr)
	}

	validator := config.NewValidator()
	appConfig, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	if err := appConfig.EnsureDirectories(); err != nil {
		logger.Fatal(err)
	}

	layoutDetector, err := detector.New(appConfig.Detector, logger)
	if err != nil {
		logger.Fatalf("Error loading model: %v", err)
	}

	fiberApp := config.NewFiber(logger, appConfig)
	redisServer := redis.New()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithAppConfig(appConfig),
		config.WithDetector(layoutDetector),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	)
	if err != nil {
		layoutDetector.Close()
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		layoutDetector.Close()
		logger.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s", appConfig.Port)

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
