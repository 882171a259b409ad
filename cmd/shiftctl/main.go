package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/shift/internal/shiftctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := shiftctl.Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("shiftctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
