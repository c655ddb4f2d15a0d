package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bballdavis/wattbox-go/wattbox"
)

func main() {
	flag.String("device-address", "", "Host:port of the WattBox device (e.g. 192.168.1.50:23)")
	flag.String("connection-type", "telnet", "Device transport: telnet or ssh")
	flag.String("username", "wattbox", "Integration Protocol username")
	flag.String("password", "wattbox", "Integration Protocol password")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.Duration("command-timeout", 10*time.Second, "Per-command response deadline")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if config.DeviceAddress == "" {
		logger.Error("No device address configured")
		os.Exit(1)
	}

	var dialer wattbox.Dialer
	switch config.ConnectionType {
	case "telnet":
		dialer = wattbox.TCPDialer{Address: config.DeviceAddress}
	case "ssh":
		dialer = wattbox.SSHDialer{
			Address:  config.DeviceAddress,
			Username: config.Username,
			Password: config.Password,
			Timeout:  config.CommandTimeout,
		}
	default:
		logger.Error("Unknown connection type", "type", config.ConnectionType)
		os.Exit(1)
	}

	clientConfig, err := wattbox.NewConfigBuilder().
		WithDialer(dialer).
		WithCredentials(config.Username, config.Password).
		WithCommandTimeout(config.CommandTimeout).
		WithLogger(logger.With("component", "wattbox")).
		Build()
	if err != nil {
		logger.Error("Failed to create client config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := wattbox.New(ctx, clientConfig)
	if err != nil {
		logger.Error("Failed to connect to device", "address", config.DeviceAddress, "error", err)
		os.Exit(1)
	}

	logger.Info("Connected to WattBox", "address", config.DeviceAddress)

	go func() {
		if err := client.Loop(ctx); err != nil &&
			!errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			logger.Error("Protocol loop failed", "error", err)
		}
	}()

	// Surface spontaneous device pushes in the log
	go func() {
		for msg := range client.Events() {
			logger.Info("Unsolicited device message", "command", msg.Name, "fields", msg.Fields)
		}
	}()

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Client: client,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	logger.Info("Closing device connection")
	if err := client.Close(); err != nil {
		logger.Error("Failed to close device connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}
