// Command rwrouter checks and exercises the routing of a primary/replica cluster.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
