// Package main is the single-binary entrypoint for the HashPlane agent.
package main

import "github.com/hashplane-network/hashplane/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
