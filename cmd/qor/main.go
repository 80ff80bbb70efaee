// Package main is the single-binary entrypoint for qor.
package main

import "github.com/qor-network/qor/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
