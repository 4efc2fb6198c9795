// Command lumen runs the Lumen companion core from a terminal.
//
// Usage:
//
//	lumen [flags] <command>
//
// Commands:
//
//	chat    - talk to the companion on stdin, evolving in the background
//	stats   - print the adaptive state as JSON
//	evolve  - run one evolution cycle and print its report
//
// Configuration is read from the environment (and a .env file found in the
// working directory or above), or from --config / --env-file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
