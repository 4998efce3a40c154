package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/database"
	"PoscoMonitorAPI/internal/handler"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/mqtt"
	"PoscoMonitorAPI/internal/notify"
	"PoscoMonitorAPI/internal/report"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/server"
	"PoscoMonitorAPI/internal/service"
	"PoscoMonitorAPI/internal/telegram"
	"PoscoMonitorAPI/internal/websocket"

	"github.com/go-redis/redis/v8"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger since main logger isn't ready
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

	cfg.Print()
	log.Info("Starting Posco Monitor API Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Database Connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Health(ctx); err != nil {
		log.Fatal("Database health check failed: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal("Database migration failed: %v", err)
	}
	if cfg.Database.SeedEquipment {
		if err := db.Seed(ctx); err != nil {
			log.Fatal("Failed to seed equipment: %v", err)
		}
	}

	log.Info("Database ready (%s)", cfg.Database.Driver)

	// 4. Initialize Repositories
	alertRepo := repository.NewAlertRepository(db.DB)
	equipmentRepo := repository.NewEquipmentRepository(db.DB)
	sensorRepo := repository.NewSensorRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	// 5. Alert State
	statusStore, closeStore := newStatusStore(ctx, cfg, log)
	defer closeStore()

	engine := alerting.NewEngine(cfg.Alerting, log, nil)
	tokens := alerting.NewTokenRegistry(cfg.Alerting.TokenTTL, log, nil)
	ledger := alerting.NewLedger(statusStore, log, nil)
	sweeper := alerting.NewSweeper(engine, tokens, ledger, cfg.Alerting, log, nil)
	sweeper.Start(ctx)

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// 6. Initialize MQTT Client
	var (
		mqttClient *mqtt.Client
		commander  service.Commander
		broker     handler.BrokerChecker
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(cfg.MQTT, log)
		if err != nil {
			log.Fatal("Failed to create MQTT client: %v", err)
		}
		if err := mqttClient.Connect(); err != nil {
			log.Fatal("Failed to connect to MQTT broker: %v", err)
		}
		commander = mqttClient
		broker = mqttClient
	} else {
		log.Warn("MQTT disabled, alerts arrive over HTTP only and equipment commands are not published")
	}

	// 7. Notification Channels
	dispatcher := newDispatcher(cfg, userRepo, hub, log)

	// 8. Initialize Services
	equipmentService := service.NewEquipmentService(equipmentRepo, commander, hub, log)
	alertService := service.NewAlertService(alertRepo, engine, ledger, tokens, equipmentService, dispatcher, hub, cfg.Server.PublicBaseURL, log)
	actionService := service.NewActionService(tokens, ledger, equipmentService, hub, log)
	maintenanceService := service.NewMaintenanceService(engine, tokens, ledger, sweeper, db, cfg.Alerting, hub, log)
	directoryService := service.NewDirectoryService(sensorRepo, userRepo, equipmentRepo, log)

	// 9. MQTT Subscriptions
	if mqttClient != nil {
		if err := mqttClient.SubscribeAlerts(alertService.Ingest); err != nil {
			log.Fatal("Failed to subscribe to alert topic: %v", err)
		}
		log.Info("MQTT subscriptions active")
	}

	// 10. Initialize Handlers
	handlers := server.Handlers{
		Alert:       handler.NewAlertHandler(alertService, log),
		Action:      handler.NewActionHandler(actionService, report.PDFOptions{FontPath: cfg.Server.ReportFontPath}, log),
		Maintenance: handler.NewMaintenanceHandler(maintenanceService, log),
		Equipment:   handler.NewEquipmentHandler(equipmentService, directoryService, log),
		Directory:   handler.NewDirectoryHandler(directoryService, log),
		Health:      handler.NewHealthHandler(db, broker, ledger, log),
		Realtime:    hub,
	}

	// 11. Start HTTP Server
	srv := server.New(cfg, log)
	srv.RegisterHandlers(handlers)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 12. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	alertService.Wait()
	sweeper.Shutdown()
	cancel()

	log.Info("Shutdown complete")
}

// newStatusStore picks the ledger backend. A Redis backend that cannot be
// reached at startup is fatal.
func newStatusStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (alerting.StatusStore, func()) {
	if cfg.Alerting.StatusBackend != config.BackendRedis {
		return alerting.NewMemoryStatusStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
	}

	log.Info("Status ledger backed by Redis at %s", cfg.Redis.Addr)
	return alerting.NewRedisStatusStore(client, cfg.Redis.KeyPrefix, log), func() {
		if err := client.Close(); err != nil {
			log.Error("Failed to close Redis client: %v", err)
		}
	}
}

func newDispatcher(cfg *config.Config, users *repository.UserRepository, hub *websocket.Hub, log *logger.Logger) *notify.Dispatcher {
	var shortener *notify.Shortener
	if cfg.SMS.ShortenLinks {
		shortener = notify.NewShortener(cfg.SMS.ShortenerURL, cfg.SMS.RequestTimeout, log)
	}

	channels := []notify.Channel{
		notify.NewSMSChannel(cfg.SMS, notify.NewCoolSMS(cfg.SMS), shortener, users, log),
		notify.NewWebLinkChannel(hub),
	}

	tg := telegram.NewClient(cfg.Telegram, log)
	if tg.Configured() && len(cfg.Telegram.ChatIDs) > 0 {
		channels = append(channels, notify.NewTelegramChannel(tg, cfg.Telegram.ChatIDs, log))
	} else {
		log.Info("Telegram push disabled (no bot token or chat ids)")
	}

	d := notify.NewDispatcher(log, cfg.SMS.RequestTimeout, channels...)
	log.Info("Notification channels: %v", d.Channels())
	return d
}
