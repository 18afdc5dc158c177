package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/psantana5/nodeend/cmd/nodeend/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Args[1:], cmd.DefaultEnv())
	stop()
	os.Exit(code)
}
