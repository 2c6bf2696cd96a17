package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalnine/benchshard/cmd"
	"github.com/signalnine/benchshard/internal/plot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var plotErr *plot.Error
		if errors.As(err, &plotErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
