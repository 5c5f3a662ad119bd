package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestShutdownContext_Signal(t *testing.T) {
	ctx, stop := ShutdownContext(context.Background(), quietLogger())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context not cancelled after SIGTERM")
	}
	if cause := context.Cause(ctx); cause == nil || !strings.Contains(cause.Error(), "terminated") {
		t.Fatalf("unexpected cause %v", cause)
	}
}

func TestShutdownContext_StopAndParent(t *testing.T) {
	ctx, stop := ShutdownContext(context.Background(), quietLogger())
	stop()
	if !errors.Is(context.Cause(ctx), context.Canceled) {
		t.Fatalf("expected canceled cause, got %v", context.Cause(ctx))
	}

	parent, cancel := context.WithCancel(context.Background())
	ctx, stop = ShutdownContext(parent, quietLogger())
	defer stop()
	cancel()
	<-ctx.Done()
}
