// Package main is the entry point for the snare CLI.
package main

import "snare.dev/pkg/snare/cmd"

func main() {
	cmd.Execute()
}
