// Command xarchive collects an X.com account's posts into JSON archives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ibeckermayer/xarchive/cmd/xarchive/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
