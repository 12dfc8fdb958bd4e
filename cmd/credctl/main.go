// Command credctl issues, inspects and revokes credlife tokens and codes against a
// Redis deployment, and runs a load test against an in-process store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
