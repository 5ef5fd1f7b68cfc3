// Command archivarius-bridge is the process entry point: it executes the
// cli.RootCmd cobra command and exits non-zero on failure.
package main

import (
	"fmt"
	"os"

	"github.com/openprocurement/archivarius-bridge/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
