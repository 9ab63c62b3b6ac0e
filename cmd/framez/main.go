// Command framez loads pipelines from a YAML document and dispatches
// requests through them against a registry of demo units.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
