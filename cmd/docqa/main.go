// Command docqa is the entry point for the document question-answering
// service. It provides a CLI interface (via Cobra) for ingesting documents
// and querying them, and an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/cambium-dev/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
