package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/nodepilot/custodian/app/custodian"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := custodian.Initialize(ctx)

	app.Start(ctx)
}
