// Package main provides the entry point for the portfolio-gate server.
package main

import (
	"fmt"
	"os"

	"github.com/secfolio/portfolio-gate/cmd/portfolio-gate/cli"
)

// Populated by the release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
