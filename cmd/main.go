package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"roomchat/auth"
	"roomchat/gateway"
	"roomchat/internal"
	"roomchat/registry"
	"roomchat/repositories"
	"roomchat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so
// that deferred cleanup (database close, sequence release) executes
// before the process exits.
func run() error {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey(config.JWTSecret)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	defer userRepository.Close()

	roomRepository, err := repositories.NewRoomRepository(db, log)
	if err != nil {
		return fmt.Errorf("room repository: %w", err)
	}
	defer roomRepository.Close()

	messageRepository, err := repositories.NewMessageRepository(db, log, config.MessageFetchLimit)
	if err != nil {
		return fmt.Errorf("message repository: %w", err)
	}
	defer messageRepository.Close()

	liveRegistry := registry.NewRegistry(log)
	membershipService := services.NewMembershipService(userRepository, roomRepository, liveRegistry, log)
	messageService := services.NewMessageService(messageRepository, liveRegistry, log)
	authProvider := services.NewAuthService(userRepository)

	gw := gateway.NewGateway(log, membershipService, messageService, authProvider,
		liveRegistry, config.ConnectionBufferSize, config.SinkTimeout, config.AuthTokenDuration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
