package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"phalsystem/internal/api"
	"phalsystem/internal/bus"
	"phalsystem/internal/config"
	_ "phalsystem/internal/plugins/actions"
	"phalsystem/internal/plugins/reset"
	"phalsystem/internal/system"
	"phalsystem/pkg/plugin"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	busURL := os.Getenv("BUS_URL")
	if busURL == "" {
		busURL = "ws://127.0.0.1:8181/core"
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}

	statusPort := 8090
	if v := os.Getenv("STATUS_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			logger.Fatal("Invalid STATUS_PORT", zap.String("value", v), zap.Error(err))
		}
		statusPort = p
	}

	logger.Info("Starting System PHAL plugin",
		zap.String("bus_url", busURL),
		zap.String("config_dir", configDir))

	// Load plugin configuration
	loader := config.NewLoader(configDir, logger)
	if err := loader.LoadAll(); err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	cfg := loader.GetSystemConfig()
	locations := loader.GetLocations()

	// Connect to the message bus
	client := bus.NewClient(busURL, logger)
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to message bus", zap.Error(err))
	}
	defer client.Disconnect()

	logger.Info("Connected to message bus")

	// OS command execution
	runner := system.NewExecRunner()
	services := system.NewServices(runner, logger)

	// Instantiate registered plugins
	ctx := plugin.NewContext(client, services, runner, cfg, locations, logger)
	plugins, err := plugin.CreateAll(ctx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}

	var coordinator *reset.Coordinator
	for _, p := range plugins {
		if err := p.Start(); err != nil {
			logger.Fatal("Failed to start plugin",
				zap.String("plugin", p.Name()), zap.Error(err))
		}
		logger.Info("Plugin started", zap.String("plugin", p.Name()))

		if c, ok := p.(*reset.Coordinator); ok {
			coordinator = c
		}
	}

	// Start the HTTP status server
	var statusServer *api.Server
	if coordinator != nil {
		statusServer = api.NewServer(coordinator, cfg, logger.Named("api"), statusPort)
		if err := statusServer.Start(); err != nil {
			logger.Fatal("Failed to start status server", zap.Error(err))
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Plugin running. Press Ctrl+C to exit.")

	<-sigChan

	logger.Info("Shutting down gracefully...")

	if statusServer != nil {
		if err := statusServer.Stop(); err != nil {
			logger.Error("Failed to stop status server", zap.Error(err))
		}
	}

	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Stop()
		logger.Info("Plugin stopped", zap.String("plugin", plugins[i].Name()))
	}
}
