// harvester is the command line entry point for the harvest pipeline: it
// scrapes the source site, validates and indexes the records, and serves the
// published files.
package main

import (
	"fmt"
	"os"

	"github.com/universe-mcp/harvester/cmd/harvester/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
