// Command pluginctl is a thin exerciser over the runtime/plugin packages:
// it loads bootstrap configuration, builds a tracked Context wired to the
// native loader and descriptor parser, and runs one lifecycle operation
// per invocation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
