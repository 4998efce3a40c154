package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PoscoMonitorAPI/internal/bot"
	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/telegram"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadBot()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	log.Info("Starting Posco Monitor Telegram bot")

	// 3. Subscribers
	subs, err := bot.LoadSubscribers(cfg.SubscribersFile)
	if err != nil {
		log.Fatal("Failed to load subscribers: %v", err)
	}
	log.Info("Loaded %d subscribers from %s", subs.Len(), cfg.SubscribersFile)

	// 4. Clients
	tg := telegram.NewClient(cfg.Telegram, log)
	api := bot.NewAPIClient(cfg.APIBaseURL, cfg.APITimeout)

	// 5. Run until signalled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Warn("Shutdown signal received")
		cancel()
	}()

	bot.New(cfg, tg, api, subs, log).Run(ctx)

	log.Info("Shutdown complete")
}
