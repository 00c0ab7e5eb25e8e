package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perfbook/companion-backend/internal/infrastructure/config"
	"github.com/perfbook/companion-backend/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse flags; flags override environment configuration
	port := flag.String("port", "", "Server port")
	workerAddr := flag.String("worker", "", "Interpreter worker address")
	contentDir := flag.String("content", "", "Chapter content directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *workerAddr != "" {
		cfg.Worker.Address = *workerAddr
	}
	if *contentDir != "" {
		cfg.Content.Dir = *contentDir
	}

	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
