// File: main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/formpilot-cli/cmd"
	"github.com/xkilldash9x/formpilot-cli/internal/observability"
)

func main() {
	// Listen for interrupt signals so an in-flight fill run can wind down
	// instead of leaving a browser process behind.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
