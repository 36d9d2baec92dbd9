// Package main is the skuhub command-line entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/skuhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
