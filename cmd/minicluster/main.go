// Command minicluster runs a throwaway Accumulo cluster until interrupted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "minicluster: %v\n", err)
		os.Exit(1)
	}
}
