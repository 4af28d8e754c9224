package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/crosstrim/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner := NewRunner(RunnerOpts{Logger: logger})
	app := runner.app()

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
