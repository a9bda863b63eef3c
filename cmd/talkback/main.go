// Package main provides the talkback server and terminal client.
//
// Usage:
//
//	talkback serve [--config talkback.yaml]
//	talkback talk [--server http://localhost:8080] [--voice nova]
//	talkback version
package main

import (
	"fmt"
	"os"

	"github.com/ayusha001100/talkback/cmd/talkback/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
