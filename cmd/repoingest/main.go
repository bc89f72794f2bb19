// Package main provides the entry point for the repoingest CLI.
package main

import (
	"os"

	"github.com/codemem/repoingest/cmd/repoingest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
