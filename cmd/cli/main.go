package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/runtime/terminal"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; settings also come from the config file and ARS_ variables.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := terminal.NewCLI(terminal.Options{
		Output: os.Stdout,
	})

	if err := cli.Execute(ctx); err != nil {
		title, message := fault.Guidance(err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
