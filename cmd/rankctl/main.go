/*
Package main is the entry point for rankctl, the operator CLI of the
listing ranking server.

Usage:

	rankctl [command]

Available Commands:

	models list|upload|delete  Manage deployed model bundles
	analyze                    Compare models from the prediction log
	simulate                   Send random ranking requests
	token                      Issue an admin token
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/listrank/internal/cli"
)

// Set via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
