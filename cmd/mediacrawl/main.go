// cmd/mediacrawl/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/mediacrawl/internal/cli"
)

func main() {
	// Cancel running crawls on interrupt; every crawl closes its own browser.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
