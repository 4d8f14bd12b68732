package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"ember-chat/infrastructure/httpapi"
	"ember-chat/internal"
	"ember-chat/repositories"
	"ember-chat/runtime"
	"ember-chat/runtime/workers"
	"ember-chat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so deferred cleanup always executes and
// main stays a single os.Exit.
func run() error {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if config.DebugInspector {
		internal.StartDebugServer(db, config.DebugInspectorPort, log)
	}

	// 3. Core components
	roomRepository := repositories.NewRoomRepository(db, log)
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository init failed: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()

	registry := runtime.NewRegistry(log)
	relay := runtime.NewRelay(messageRepository, registry, log)
	codes := services.NewCodeGenerator(roomRepository, log)
	roomService := services.NewRoomService(roomRepository, registry, relay, codes, log)
	chatService := services.NewChatService(roomService, messageRepository, registry, relay, log)

	// 4. Background sweep under supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewSweeperWorker(roomService, config.SweepInterval, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP + websocket surface
	handler := httpapi.New(log, roomService, chatService, httpapi.Options{
		AllowedOrigins:     splitOrigins(config.AllowedOrigins),
		MaxCiphertextBytes: config.MaxCiphertextBytes,
		SessionBufferSize:  config.SessionBufferSize,
	})

	c := cors.New(cors.Options{
		AllowedOrigins: splitOrigins(config.AllowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: c.Handler(handler.SetupRouter()),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 6. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Ordered shutdown: sweeper first, then stop accepting
	// connections, then a bounded grace period for in-flight work.
	sup.Stop()
	<-supervisorDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Forced shutdown after grace period", "error", err)
		_ = server.Close()
	}

	log.Info("Program stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
