// Package main provides the speechtext CLI.
//
// Usage:
//
//	speechtext [flags] <command> [args]
//
// Commands:
//
//	serve       - run the HTTP transcription API
//	transcribe  - transcribe audio files and print one line per file
//	eval        - score transcriptions against a reference manifest
//	reap        - delete expired uploads once
//	model init  - write a randomly initialised model for testing
//	version     - print the build version
package main

import (
	"fmt"
	"os"

	"github.com/ieee0824/speechtext/cmd/speechtext/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
