package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"attendance/internal/app"
)

func main() {
	// Missing .env is fine, environment variables still apply.
	godotenv.Load()

	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
