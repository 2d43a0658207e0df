// Command codvfs tunes CPU and GPU clocks of a GPU server for HPC
// benchmark energy efficiency.
package main

import "github.com/haskel/codvfs/internal/cli"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
