// Package main provides the fdsn command line client.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tapsdmc/fdsnclient/internal/client"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	client.Version = Version

	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
