// Package testutil provides testing utilities for bus-driven plugins.
// This file provides a TestEnv for integration testing over a live
// WebSocket connection.
package testutil

import (
	"fmt"

	"phalsystem/internal/bus"
	"phalsystem/internal/config"
	"phalsystem/internal/system"

	"go.uber.org/zap"
)

// TestEnv provides a complete test environment: a mock bus server, a
// connected client, and mocked OS command execution. Filesystem paths are
// rooted under the given directory so wipe operations stay contained.
type TestEnv struct {
	Server    *MockBusServer
	Client    *bus.Client
	Runner    *system.MockRunner
	Services  *system.Services
	Config    *config.SystemConfig
	Locations *config.Locations
	Logger    *zap.Logger
}

// NewTestEnv creates a fully configured test environment with the mock bus
// server started and the client connected.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv("localhost:8181", t.TempDir())
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
func NewTestEnv(addr, root string) (*TestEnv, error) {
	logger, _ := zap.NewDevelopment()

	server := NewMockBusServer(addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock bus server: %w", err)
	}

	client := bus.NewClient(server.URL(), logger)
	if err := client.Connect(); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}

	runner := system.NewMockRunner()

	// A loader pointed at the test root finds no system.yaml and yields
	// the default configuration.
	loader := config.NewLoader(root, logger)
	if err := loader.LoadSystemConfig(); err != nil {
		client.Disconnect()
		server.Stop()
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return &TestEnv{
		Server:    server,
		Client:    client,
		Runner:    runner,
		Services:  system.NewServices(runner, logger),
		Config:    loader.GetSystemConfig(),
		Locations: config.TestLocations(root),
		Logger:    logger,
	}, nil
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	if e.Client != nil {
		e.Client.Disconnect()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
}
