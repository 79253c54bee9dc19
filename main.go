// The main package for the squidctl executable.
package main

import (
	"github.com/lobstr-tools/squidctl/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
