// Command scmreader reads files, trees and glob searches from the configured
// source-control hosts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
