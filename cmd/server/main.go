// Package main is the entry point for the rebalancer: a long-running service
// that keeps a small crypto portfolio near its target allocation, plus
// one-shot commands for inspection.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
