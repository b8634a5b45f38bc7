// Command quotactl serves the quota HTTP API and administers tenant usage
// and subscriptions from the command line.
package main

import (
	"context"
	"fmt"
	"os"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
