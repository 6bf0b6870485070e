// Package main is the single-binary entrypoint for the StoryPets
// progression engine.
package main

import "github.com/storypets/storypets/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
