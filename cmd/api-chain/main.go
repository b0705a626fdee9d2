package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"api-chain/internal/app"
	"api-chain/internal/logging"

	"github.com/joho/godotenv"
)

// main is the entry point of the application.
// It loads an optional .env file, then runs the application with command-line arguments.
func main() {
	// A missing .env file is fine; variables may come from the real environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := app.NewAppRunner()
	err := runner.Run(ctx, os.Args[1:])
	if err != nil {
		log.Printf("[ERROR] Application execution failed: %v", err)
		if errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}
		logging.Sync()
		stop()
		os.Exit(1)
	}

	logging.Logf(logging.Info, "Application completed successfully.")
	logging.Sync()
}
