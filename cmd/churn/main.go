// Command churn runs and verifies the customer-churn pipeline.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/churnscope/pkg/log"
)

func main() {
	if err := log.SetupLogger("info", os.Stderr); err != nil {
		panic(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		slog.Error("churn failed", log.ErrAttr(err))
		stop()
		os.Exit(1)
	}
}
