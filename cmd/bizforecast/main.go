// Package main provides the bizforecast command.
package main

import (
	"os"

	"github.com/leapstack-labs/bizforecast/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
