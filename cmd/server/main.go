package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aquawatch/api/server"
	"aquawatch/internal/alert"
	"aquawatch/internal/config"
	"aquawatch/internal/database"
	"aquawatch/internal/detect"
	"aquawatch/internal/elasticsearch"
	"aquawatch/internal/health"
	"aquawatch/internal/ingest"
	"aquawatch/internal/logger"
	"aquawatch/internal/rules"
	"aquawatch/internal/store"

	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "etc/config.yaml", "Path to configuration file")
	version    = "1.0.0"
)

func main() {
	flag.Parse()

	var cfg *config.Config

	// Prefer the config file, fall back to environment variables.
	if _, err := os.Stat(*configFile); err == nil {
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Printf("Failed to load config from file: %v\n", err)
			fmt.Println("Falling back to environment variables...")
			cfg = config.Load()
		}
	} else {
		fmt.Println("Config file not found, loading from environment variables...")
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting AquaWatch Service",
		zap.String("version", version),
		zap.String("config_file", *configFile),
	)

	if err := database.InitDB(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	logger.Info("Database initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.DBName),
	)

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		var err error
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch)
		if err != nil {
			logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
		}
		logger.Info("Elasticsearch initialized")
	} else {
		logger.Info("Elasticsearch is disabled")
	}

	if esClient != nil {
		if err := esClient.CreateIndexTemplate(); err != nil {
			logger.Warn("Failed to create index template", zap.Error(err))
		}
	}

	st := store.New(database.GetDB())

	factory := alert.NewFactory(cfg.Alert, cfg.Health, st, nil)
	detector := detect.NewService(cfg.Detection, st, factory)
	evaluator := rules.NewEvaluator(st, factory)
	healthEngine := health.NewEngine(cfg.Health, st)

	ingestSvc := ingest.NewService(cfg.Ingest, cfg.Alert, st, detector, evaluator, factory, esClient, "logs")
	if cfg.Alert.Enabled {
		ingestSvc.StartStaleSweep()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	go func() {
		httpServer := server.NewServer(st, ingestSvc, healthEngine, esClient, cfg)
		logger.Info("Starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.Run(httpAddr); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("AquaWatch service is running",
		zap.Int("http_port", cfg.Server.HTTPPort),
	)

	sig := <-sigChan
	logger.Info("Received signal, shutting down...", zap.String("signal", sig.String()))

	ingestSvc.Stop()
	logger.Info("AquaWatch service stopped")
}
