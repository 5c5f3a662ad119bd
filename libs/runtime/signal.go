package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// ShutdownContext derives a context that is cancelled when the process receives SIGINT or
// SIGTERM. The signal is logged and available through context.Cause. stop releases the signal
// subscription and cancels the context.
func ShutdownContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, shutdownSignals...)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logger.Info("shutdown signal received", "signal", sig.String())
			cancel(fmt.Errorf("received %s", sig))
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
